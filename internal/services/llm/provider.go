package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// NewProvider returns the configured default provider, falling back to the
// other one when only its key is set. Without any key it returns
// models.ErrAnalyzerDisabled.
func NewProvider(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.LLMProvider, error) {
	order := []ProviderType{ProviderClaude, ProviderGemini}
	if ProviderType(config.LLM.DefaultProvider) == ProviderGemini {
		order = []ProviderType{ProviderGemini, ProviderClaude}
	}

	for _, provider := range order {
		switch provider {
		case ProviderClaude:
			if config.Claude.APIKey != "" {
				return NewClaudeProvider(config.Claude, config.LLM.Temperature, logger), nil
			}
		case ProviderGemini:
			if config.Gemini.APIKey != "" {
				return NewGeminiProvider(ctx, config.Gemini, config.LLM.Temperature, logger)
			}
		}
	}

	logger.Warn().Msg("LLM disabled - set ANTHROPIC_API_KEY or GEMINI_API_KEY to enable insights")
	return nil, models.ErrAnalyzerDisabled
}

// ClaudeProvider generates content with the Anthropic Messages API
type ClaudeProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	retry       *RetryConfig
	logger      arbor.ILogger
}

var _ interfaces.LLMProvider = (*ClaudeProvider)(nil)

// NewClaudeProvider creates a Claude provider from [claude] config
func NewClaudeProvider(config common.ClaudeConfig, temperature float32, logger arbor.ILogger) *ClaudeProvider {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	return &ClaudeProvider{
		client:      anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		model:       config.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     common.ParseDurationOr(config.Timeout, 2*time.Minute),
		retry:       NewDefaultRetryConfig(),
		logger:      logger,
	}
}

// Name returns the provider name
func (p *ClaudeProvider) Name() string {
	return string(ProviderClaude)
}

// Generate sends a single user prompt with an optional system instruction
func (p *ClaudeProvider) Generate(ctx context.Context, system string, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if p.temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	p.logger.Debug().
		Str("provider", p.Name()).
		Str("model", p.model).
		Int("prompt_chars", len(prompt)).
		Msg("Generating content with provider")

	text, err := withRetry(ctx, p.retry, p.Name(), p.logger, func() (string, error) {
		resp, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return "", fmt.Errorf("empty response from Claude API")
		}
		return text.String(), nil
	})
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}
	return text, nil
}

// GeminiProvider generates content with the Gemini API
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	retry       *RetryConfig
	logger      arbor.ILogger
}

var _ interfaces.LLMProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider from [gemini] config
func NewGeminiProvider(ctx context.Context, config common.GeminiConfig, temperature float32, logger arbor.ILogger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       config.Model,
		temperature: temperature,
		timeout:     common.ParseDurationOr(config.Timeout, 2*time.Minute),
		retry:       NewDefaultRetryConfig(),
		logger:      logger,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return string(ProviderGemini)
}

// Generate sends a single user prompt with an optional system instruction
func (p *GeminiProvider) Generate(ctx context.Context, system string, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	p.logger.Debug().
		Str("provider", p.Name()).
		Str("model", p.model).
		Int("prompt_chars", len(prompt)).
		Msg("Generating content with provider")

	text, err := withRetry(ctx, p.retry, p.Name(), p.logger, func() (string, error) {
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return "", fmt.Errorf("empty response from Gemini API")
		}
		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("empty text in Gemini response")
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}
	return text, nil
}
