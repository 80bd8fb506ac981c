package interfaces

import (
	"context"
	"time"
)

// Fetcher issues a GET request and returns the response body.
// Implementations retry transient failures and fail with *models.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error)
}

// Sleeper blocks the caller for d. Injected so delays can be observed in tests.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
