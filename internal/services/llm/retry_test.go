package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/models"
)

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, IsRateLimitError(nil))
	assert.True(t, IsRateLimitError(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New(`{"type":"rate_limit_error"}`)))
	assert.True(t, IsRateLimitError(errors.New("daily quota exceeded")))
	assert.False(t, IsRateLimitError(errors.New("invalid api key")))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota exceeded. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, 12*time.Second, ExtractRetryDelay(errors.New(`details: retryDelay: 12s`)))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("boom")))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(nil))
}

func TestRetryConfig_Backoff(t *testing.T) {
	config := NewDefaultRetryConfig()

	assert.Equal(t, 45*time.Second, config.Backoff(0, errors.New("429")))
	assert.Equal(t, 90*time.Second, config.Backoff(3, errors.New("429")))
	assert.Equal(t, 15*time.Second, config.Backoff(0, errors.New("429 Please retry in 10s")))
	assert.Equal(t, 2*time.Second, config.Backoff(0, errors.New("connection reset")))
	assert.Equal(t, 6*time.Second, config.Backoff(2, errors.New("connection reset")))
}

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1, ErrorBackoff: time.Millisecond}
}

func TestWithRetry_RecoversAfterErrors(t *testing.T) {
	calls := 0
	text, err := withRetry(context.Background(), fastRetry(), "test", arbor.NewLogger(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), fastRetry(), "test", arbor.NewLogger(), func() (string, error) {
		calls++
		return "", errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := fastRetry()
	config.ErrorBackoff = time.Hour
	_, err := withRetry(ctx, config, "test", arbor.NewLogger(), func() (string, error) {
		return "", errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProvider_DisabledWithoutKeys(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Claude.APIKey = ""
	config.Gemini.APIKey = ""

	provider, err := NewProvider(context.Background(), config, arbor.NewLogger())
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, models.ErrAnalyzerDisabled)
}

func TestNewProvider_PrefersDefaultWithKey(t *testing.T) {
	config := common.NewDefaultConfig()
	config.LLM.DefaultProvider = "gemini"
	config.Claude.APIKey = "sk-ant-test"
	config.Gemini.APIKey = ""

	provider, err := NewProvider(context.Background(), config, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "claude", provider.Name())
}
