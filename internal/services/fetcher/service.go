package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
)

// Options controls retry and politeness behaviour
type Options struct {
	// Retries is the total number of attempts per Fetch call (default 3)
	Retries int
	// PoliteDelay is the minimum gap between consecutive Fetch calls
	PoliteDelay time.Duration
	// BackoffUnit scales the 1, 2, 4, ... backoff schedule (default 1s)
	BackoffUnit time.Duration
	// Sleeper performs all waits; defaults to time.Sleep
	Sleeper interfaces.Sleeper
	// Clock supplies the time used for politeness reservations; defaults to time.Now
	Clock interfaces.Clock
}

// OptionsFromConfig builds Options from the [fetch] config section
func OptionsFromConfig(config common.FetchConfig) Options {
	return Options{
		Retries:     config.Retries,
		PoliteDelay: common.ParseDurationOr(config.PoliteDelay, 0),
		BackoffUnit: common.ParseDurationOr(config.BackoffUnit, time.Second),
	}
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service is a rate-limited, retrying HTTP fetcher.
// It is not safe for concurrent use; calls are expected to be sequential.
type Service struct {
	client      *resty.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
	retries     int
	backoffUnit time.Duration
	sleeper     interfaces.Sleeper
	clock       interfaces.Clock
}

// NewService creates a fetcher over client
func NewService(client *resty.Client, options Options, logger arbor.ILogger) *Service {
	if options.Retries <= 0 {
		options.Retries = 3
	}
	if options.BackoffUnit <= 0 {
		options.BackoffUnit = time.Second
	}
	if options.Sleeper == nil {
		options.Sleeper = realSleeper{}
	}
	if options.Clock == nil {
		options.Clock = realClock{}
	}

	var limiter *rate.Limiter
	if options.PoliteDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(options.PoliteDelay), 1)
	}

	return &Service{
		client:      client,
		logger:      logger,
		limiter:     limiter,
		retries:     options.Retries,
		backoffUnit: options.BackoffUnit,
		sleeper:     options.Sleeper,
		clock:       options.Clock,
	}
}

// Fetch waits out the politeness interval, then GETs endpoint with params,
// retrying transport errors and non-2xx responses with 1, 2, 4... unit backoff.
// After the final failed attempt it returns *models.FetchError without sleeping.
func (s *Service) Fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	s.waitPolitely()

	var lastErr error
	var lastStatus int
	attempts := 0

	for attempt := 1; attempt <= s.retries; attempt++ {
		attempts = attempt

		body, status, err := s.do(ctx, endpoint, params)
		if err == nil {
			return body, nil
		}
		lastErr, lastStatus = err, status

		// A cancelled caller gets no further attempts
		if ctx.Err() != nil || attempt == s.retries {
			break
		}

		backoff := Backoff(s.backoffUnit, attempt)
		s.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Int("max_attempts", s.retries).
			Int("status_code", status).
			Dur("backoff", backoff).
			Err(err).
			Msg("Request failed, retrying after backoff")

		s.sleeper.Sleep(backoff)
	}

	s.logger.Error().
		Str("endpoint", endpoint).
		Int("attempts", attempts).
		Int("status_code", lastStatus).
		Err(lastErr).
		Msg("All fetch attempts exhausted")

	return nil, &models.FetchError{
		Endpoint:   endpoint,
		Attempts:   attempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// Backoff returns unit * 2^(attempt-1), attempt counted from 1
func Backoff(unit time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return unit * time.Duration(1<<uint(attempt-1))
}

// waitPolitely reserves a slot on the limiter and sleeps until it is due
func (s *Service) waitPolitely() {
	if s.limiter == nil {
		return
	}
	now := s.clock.Now()
	delay := s.limiter.ReserveN(now, 1).DelayFrom(now)
	if delay > 0 {
		s.logger.Debug().Dur("delay", delay).Msg("Politeness delay before request")
		s.sleeper.Sleep(delay)
	}
}

func (s *Service) do(ctx context.Context, endpoint string, params map[string]string) ([]byte, int, error) {
	req := s.client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return nil, 0, err
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, status, fmt.Errorf("unexpected HTTP status %s", resp.Status())
	}

	return resp.Body(), status, nil
}
