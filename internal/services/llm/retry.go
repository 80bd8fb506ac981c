package llm

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig controls how provider calls are retried. Rate-limited calls back
// off exponentially from InitialBackoff (or the delay the API asks for) up to
// MaxBackoff; any other error waits (attempt+1) * ErrorBackoff.
type RetryConfig struct {
	MaxRetries        int // retries after the first attempt
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	ErrorBackoff      time.Duration
}

// NewDefaultRetryConfig returns limits sized for per-minute provider quotas
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    45 * time.Second,
		MaxBackoff:        90 * time.Second,
		BackoffMultiplier: 1.5,
		ErrorBackoff:      2 * time.Second,
	}
}

var rateLimitMarkers = []string{"429", "RESOURCE_EXHAUSTED", "rate_limit", "quota"}

// IsRateLimitError reports whether err looks like a provider quota rejection
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// suggestedDelay matches "Please retry in 12.5s" and "retryDelay: 12s"
var suggestedDelay = regexp.MustCompile(`(?i)(?:please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay returns the delay suggested in err's message, or 0
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := suggestedDelay.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	seconds, convErr := strconv.ParseFloat(m[1], 64)
	if convErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff is base * multiplier^attempt capped at MaxBackoff, where base
// is apiDelay plus 5s of slack when the API suggested a delay
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + 5*time.Second
	}
	backoff := time.Duration(float64(base) * math.Pow(c.BackoffMultiplier, float64(attempt)))
	return min(backoff, c.MaxBackoff)
}

// Backoff returns the wait before retrying after err on the given zero-based attempt
func (c *RetryConfig) Backoff(attempt int, err error) time.Duration {
	if IsRateLimitError(err) {
		return c.CalculateBackoff(attempt, ExtractRetryDelay(err))
	}
	return time.Duration(attempt+1) * c.ErrorBackoff
}

// withRetry calls fn until it succeeds, retries are exhausted or ctx is done
func withRetry(ctx context.Context, retry *RetryConfig, provider string, logger arbor.ILogger, fn func() (string, error)) (string, error) {
	var text string
	var apiErr error

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		text, apiErr = fn()
		if apiErr == nil {
			return text, nil
		}

		if attempt == retry.MaxRetries {
			break
		}

		backoff := retry.Backoff(attempt, apiErr)
		logger.Warn().
			Str("provider", provider).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying LLM API call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", apiErr
}
