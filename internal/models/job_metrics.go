package models

import (
	"fmt"
	"time"
)

// JobOutcome is the terminal status of a single job execution
type JobOutcome string

const (
	JobOutcomeSuccess JobOutcome = "success"
	JobOutcomeFailure JobOutcome = "failure"
)

// JobHistoryEntry is one recorded job execution
type JobHistoryEntry struct {
	JobID     string     `json:"job_id"`
	RunID     string     `json:"run_id,omitempty"`
	Status    JobOutcome `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Error     string     `json:"error,omitempty"`
}

// JobMetrics is the persisted rolling scheduler state.
// Invariant: TotalJobs == SuccessfulJobs + FailedJobs.
type JobMetrics struct {
	TotalJobs      int               `json:"total_jobs"`
	SuccessfulJobs int               `json:"successful_jobs"`
	FailedJobs     int               `json:"failed_jobs"`
	SuccessRate    string            `json:"success_rate"`
	LastExecution  *time.Time        `json:"last_execution"`
	JobHistory     []JobHistoryEntry `json:"job_history"`
}

// Record applies one execution outcome, keeping at most historyCap entries (oldest evicted first)
func (m *JobMetrics) Record(entry JobHistoryEntry, historyCap int) {
	m.TotalJobs++
	if entry.Status == JobOutcomeSuccess {
		m.SuccessfulJobs++
	} else {
		m.FailedJobs++
	}

	ts := entry.Timestamp
	m.LastExecution = &ts

	m.JobHistory = append(m.JobHistory, entry)
	if historyCap > 0 && len(m.JobHistory) > historyCap {
		overflow := len(m.JobHistory) - historyCap
		trimmed := make([]JobHistoryEntry, historyCap)
		copy(trimmed, m.JobHistory[overflow:])
		m.JobHistory = trimmed
	}

	m.SuccessRate = m.FormatSuccessRate()
}

// FailureRate returns failed/total, or 0 when nothing has run
func (m *JobMetrics) FailureRate() float64 {
	if m.TotalJobs == 0 {
		return 0
	}
	return float64(m.FailedJobs) / float64(m.TotalJobs)
}

// FormatSuccessRate renders the success ratio as a percentage string
func (m *JobMetrics) FormatSuccessRate() string {
	if m.TotalJobs == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(m.SuccessfulJobs)/float64(m.TotalJobs)*100)
}

// JobResult is the event produced by one synchronous job execution
type JobResult struct {
	JobID     string
	RunID     string
	Status    JobOutcome
	StartedAt time.Time
	Duration  time.Duration
	Err       error
	Alerted   bool
	Metrics   JobMetrics
}

// Succeeded reports whether the execution completed without error
func (r JobResult) Succeeded() bool {
	return r.Status == JobOutcomeSuccess
}

// Trigger selects when a job fires: a 5-field cron expression or a fixed interval in minutes
type Trigger struct {
	Cron            string
	IntervalMinutes int
}

// String renders the trigger for logs and status listings
func (t Trigger) String() string {
	if t.Cron != "" {
		return "cron(" + t.Cron + ")"
	}
	return fmt.Sprintf("every(%dm)", t.IntervalMinutes)
}
