package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/harvester/internal/models"
)

// JobFunc is the unit of work run by the scheduler
type JobFunc func(ctx context.Context) error

// JobStatus represents the current status of a scheduled job
type JobStatus struct {
	ID        string
	Trigger   string
	LastRun   *time.Time
	NextRun   *time.Time
	IsRunning bool
	LastError string
}

// SchedulerService manages cron and interval based jobs
type SchedulerService interface {
	// AddJob registers fn under jobID; exactly one of cron or interval must be given
	AddJob(jobID string, fn JobFunc, trigger models.Trigger) error

	// RunJob executes a registered job synchronously and reports its outcome
	RunJob(ctx context.Context, jobID string) (models.JobResult, error)

	// Start runs triggers until ctx is cancelled
	Start(ctx context.Context) error

	// IsRunning returns true if the trigger loop is active
	IsRunning() bool

	// Statuses returns the status of every registered job
	Statuses() []JobStatus
}

// AlertNotifier delivers alert messages outside the alert log
type AlertNotifier interface {
	Notify(ctx context.Context, subject string, message string) error
}
