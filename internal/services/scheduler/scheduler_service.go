package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
)

// maxErrorLength bounds the error text kept in job history entries
const maxErrorLength = 200

// jobEntry represents a registered job with metadata
type jobEntry struct {
	id        string
	fn        interfaces.JobFunc
	trigger   models.Trigger
	cronID    cron.EntryID
	lastRun   *time.Time
	isRunning bool
	lastError string
}

// Service runs registered jobs on cron or interval triggers, one at a time,
// and records every outcome in the metrics file.
type Service struct {
	cron     *cron.Cron
	cronLog  cron.Logger
	metrics  *MetricsStore
	alertLog *AlertLog
	policy   AlertPolicy
	notifier interfaces.AlertNotifier
	logger   arbor.ILogger
	now      func() time.Time

	mu       sync.Mutex // Protects running and baseCtx
	jobMu    sync.Mutex // Protects jobs map
	globalMu sync.Mutex // Prevents concurrent job execution
	jobs     map[string]*jobEntry
	running  bool
	baseCtx  context.Context
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a scheduler from the [scheduler] config section.
// notifier may be nil, in which case alerts only go to the alert log.
func NewService(config common.SchedulerConfig, notifier interfaces.AlertNotifier, logger arbor.ILogger) *Service {
	policy := AlertPolicy{MinJobs: config.AlertMinJobs, Threshold: config.AlertThreshold}
	if policy.Threshold <= 0 {
		policy.Threshold = DefaultAlertPolicy().Threshold
	}

	cronLog := &cronLogger{logger: logger}
	return &Service{
		cron:     cron.New(cron.WithLogger(cronLog)),
		cronLog:  cronLog,
		metrics:  NewMetricsStore(config.MetricsFile, config.HistoryCap, logger),
		alertLog: NewAlertLog(config.AlertLog),
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		jobs:     make(map[string]*jobEntry),
		baseCtx:  context.Background(),
	}
}

// Metrics returns the metrics store
func (s *Service) Metrics() *MetricsStore {
	return s.metrics
}

// AddJob registers fn under jobID. Exactly one of trigger.Cron or
// trigger.IntervalMinutes must be set; anything else is a ConfigurationError.
// At most one instance of a job runs at a time; a firing that overlaps a
// still-running instance is skipped.
func (s *Service) AddJob(jobID string, fn interfaces.JobFunc, trigger models.Trigger) error {
	schedule, err := validateJob(jobID, fn, trigger)
	if err != nil {
		return err
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[jobID]; exists {
		return &models.ConfigurationError{JobID: jobID, Reason: "job already registered"}
	}

	job := cron.NewChain(cron.SkipIfStillRunning(s.cronLog)).Then(cron.FuncJob(func() {
		s.fire(jobID)
	}))
	cronID := s.cron.Schedule(schedule, job)

	s.jobs[jobID] = &jobEntry{
		id:      jobID,
		fn:      fn,
		trigger: trigger,
		cronID:  cronID,
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("trigger", trigger.String()).
		Msg("Job registered")

	return nil
}

func validateJob(jobID string, fn interfaces.JobFunc, trigger models.Trigger) (cron.Schedule, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, &models.ConfigurationError{JobID: jobID, Reason: "job id is required"}
	}
	if fn == nil {
		return nil, &models.ConfigurationError{JobID: jobID, Reason: "job function is required"}
	}

	hasCron := strings.TrimSpace(trigger.Cron) != ""
	hasInterval := trigger.IntervalMinutes != 0
	switch {
	case hasCron && hasInterval:
		return nil, &models.ConfigurationError{JobID: jobID, Reason: "cron and interval are mutually exclusive"}
	case !hasCron && !hasInterval:
		return nil, &models.ConfigurationError{JobID: jobID, Reason: "either cron or interval must be given"}
	case hasInterval && trigger.IntervalMinutes < 0:
		return nil, &models.ConfigurationError{JobID: jobID, Reason: fmt.Sprintf("interval must be positive, got %d", trigger.IntervalMinutes)}
	case hasInterval:
		return cron.Every(time.Duration(trigger.IntervalMinutes) * time.Minute), nil
	}

	schedule, err := common.ParseJobSchedule(trigger.Cron)
	if err != nil {
		return nil, &models.ConfigurationError{JobID: jobID, Reason: err.Error()}
	}
	return schedule, nil
}

// fire is the trigger callback. It never returns an error; RunJob records the outcome.
func (s *Service) fire(jobID string) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if _, err := s.RunJob(ctx, jobID); err != nil {
		s.logger.Error().
			Str("job_id", jobID).
			Err(err).
			Msg("Scheduled job could not be run")
	}
}

// RunJob executes a registered job synchronously, records success or failure
// in the metrics file and evaluates the alert policy after each failure.
// Job errors and panics are reported in the result, never as the returned error;
// the returned error is only set when jobID is unknown.
func (s *Service) RunJob(ctx context.Context, jobID string) (models.JobResult, error) {
	s.jobMu.Lock()
	entry, exists := s.jobs[jobID]
	if !exists {
		s.jobMu.Unlock()
		return models.JobResult{}, fmt.Errorf("job %q not registered", jobID)
	}
	fn := entry.fn
	s.jobMu.Unlock()

	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	result := models.JobResult{
		JobID:     jobID,
		RunID:     common.NewRunID(),
		StartedAt: s.now(),
	}

	s.setRunning(entry, true)
	s.logger.Info().
		Str("job_id", jobID).
		Str("run_id", result.RunID).
		Msg("Job execution started")

	jobErr := invoke(ctx, jobID, result.RunID, fn)

	finished := s.now()
	result.Duration = finished.Sub(result.StartedAt)

	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &finished
	entry.lastError = ""
	if jobErr != nil {
		entry.lastError = jobErr.Error()
	}
	s.jobMu.Unlock()

	history := models.JobHistoryEntry{
		JobID:     jobID,
		RunID:     result.RunID,
		Status:    models.JobOutcomeSuccess,
		Timestamp: finished,
	}
	if jobErr != nil {
		result.Err = jobErr
		history.Status = models.JobOutcomeFailure
		history.Error = TruncateError(causeText(jobErr), maxErrorLength)
	}
	result.Status = history.Status

	metrics, err := s.metrics.Record(history)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("path", s.metrics.Path()).
			Msg("Failed to persist job metrics")
	}
	result.Metrics = metrics

	if jobErr != nil {
		s.logger.Error().
			Str("job_id", jobID).
			Str("run_id", result.RunID).
			Err(jobErr).
			Dur("duration", result.Duration).
			Str("success_rate", metrics.SuccessRate).
			Msg("Job execution failed")

		if s.policy.ShouldAlert(metrics) {
			s.alert(ctx, finished, metrics, jobID, history.Error)
			result.Alerted = true
		}
	} else {
		s.logger.Info().
			Str("job_id", jobID).
			Str("run_id", result.RunID).
			Dur("duration", result.Duration).
			Str("success_rate", metrics.SuccessRate).
			Msg("Job execution completed successfully")
	}

	return result, nil
}

func (s *Service) setRunning(entry *jobEntry, running bool) {
	s.jobMu.Lock()
	entry.isRunning = running
	s.jobMu.Unlock()
}

// invoke runs fn and converts any error or panic into a JobExecutionError
func invoke(ctx context.Context, jobID string, runID string, fn interfaces.JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &models.JobExecutionError{JobID: jobID, RunID: runID, Panicked: true, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if jobErr := fn(ctx); jobErr != nil {
		return &models.JobExecutionError{JobID: jobID, RunID: runID, Err: jobErr}
	}
	return nil
}

// causeText returns the job's own error text without the execution wrapper
func causeText(err error) string {
	var execErr *models.JobExecutionError
	if errors.As(err, &execErr) && execErr.Err != nil {
		return execErr.Err.Error()
	}
	return err.Error()
}

func (s *Service) alert(ctx context.Context, ts time.Time, metrics models.JobMetrics, jobID string, errText string) {
	message := AlertMessage(metrics, jobID, errText)

	s.logger.Warn().
		Str("job_id", jobID).
		Int("total_jobs", metrics.TotalJobs).
		Int("failed_jobs", metrics.FailedJobs).
		Str("success_rate", metrics.SuccessRate).
		Msg("ALERT: " + message)

	if err := s.alertLog.Append(ts, message); err != nil {
		s.logger.Warn().Err(err).Str("path", s.alertLog.Path()).Msg("Failed to write alert log")
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, "Harvester alert: job failure rate "+metrics.SuccessRate+" success", message); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to send alert notification")
		}
	}
}

// Start fires triggers until ctx is cancelled, then waits for any job in
// progress to finish. Jobs run on a context that is not cancelled with ctx,
// so interruption takes effect between job invocations.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.baseCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	s.jobMu.Lock()
	jobCount := len(s.jobs)
	s.jobMu.Unlock()

	s.cron.Start()
	s.logger.Info().
		Int("jobs", jobCount).
		Msg("Scheduler started")

	<-ctx.Done()

	s.logger.Info().Msg("Scheduler stopping, waiting for running job")
	<-s.cron.Stop().Done()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the trigger loop is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Statuses returns the status of every registered job ordered by id
func (s *Service) Statuses() []interfaces.JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make([]interfaces.JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := interfaces.JobStatus{
			ID:        entry.id,
			Trigger:   entry.trigger.String(),
			LastRun:   entry.lastRun,
			IsRunning: entry.isRunning,
			LastError: entry.lastError,
		}
		if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
			status.NextRun = &next
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ID < statuses[j].ID
	})
	return statuses
}

// TruncateError shortens msg to at most max characters
func TruncateError(msg string, max int) string {
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max])
}
