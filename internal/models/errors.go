package models

import (
	"errors"
	"fmt"
)

// ErrAnalyzerDisabled is returned when no LLM provider credentials are configured
var ErrAnalyzerDisabled = errors.New("insights analyzer disabled: no API key configured")

// FetchError is returned when a request still fails after all retry attempts
type FetchError struct {
	Endpoint   string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s) (status %d): %v", e.Endpoint, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a payload is missing required structure.
// Missing optional fields never produce a ParseError.
type ParseError struct {
	Key    string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	switch {
	case e.Key != "" && e.Field != "":
		return fmt.Sprintf("parse %s: field %q: %s", e.Key, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("parse: field %q: %s", e.Field, e.Reason)
	case e.Key != "":
		return fmt.Sprintf("parse %s: %s", e.Key, e.Reason)
	default:
		return "parse: " + e.Reason
	}
}

// ConfigurationError is returned for invalid job registrations
type ConfigurationError struct {
	JobID  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid job configuration %q: %s", e.JobID, e.Reason)
}

// JobExecutionError wraps any failure raised by a scheduled job.
// It is always recorded by the scheduler and never terminates it.
type JobExecutionError struct {
	JobID    string
	RunID    string
	Panicked bool
	Err      error
}

func (e *JobExecutionError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("job %s (run %s) panicked: %v", e.JobID, e.RunID, e.Err)
	}
	return fmt.Sprintf("job %s (run %s) failed: %v", e.JobID, e.RunID, e.Err)
}

func (e *JobExecutionError) Unwrap() error {
	return e.Err
}
