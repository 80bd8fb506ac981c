package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/harvester/internal/models"
)

// AlertPolicy decides when the rolling failure rate warrants an alert
type AlertPolicy struct {
	// MinJobs must be exceeded by total_jobs before any alert fires
	MinJobs int
	// Threshold must be exceeded by failed_jobs/total_jobs
	Threshold float64
}

// DefaultAlertPolicy alerts once more than 10 jobs ran and over 30% failed
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{MinJobs: 10, Threshold: 0.30}
}

// ShouldAlert evaluates the policy against metrics. It keeps no state, so it
// holds on every failure while the threshold stays exceeded.
func (p AlertPolicy) ShouldAlert(metrics models.JobMetrics) bool {
	if metrics.TotalJobs <= p.MinJobs {
		return false
	}
	return metrics.FailureRate() > p.Threshold
}

// AlertMessage describes the failure rate and the failure that tripped it
func AlertMessage(metrics models.JobMetrics, jobID string, errText string) string {
	return fmt.Sprintf("high job failure rate %.1f%% (%d/%d failed); latest failure %s: %s",
		metrics.FailureRate()*100, metrics.FailedJobs, metrics.TotalJobs, jobID, errText)
}

// AlertLog is an append-only text file with one "<timestamp> - ALERT: <message>" line per alert
type AlertLog struct {
	path string
	mu   sync.Mutex
}

// NewAlertLog returns an alert log at path
func NewAlertLog(path string) *AlertLog {
	return &AlertLog{path: path}
}

// Path returns the alert log location
func (l *AlertLog) Path() string {
	return l.path
}

// Append writes one alert line stamped with ts
func (l *AlertLog) Append(ts time.Time, message string) error {
	if l.path == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create alert log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open alert log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s - ALERT: %s\n", ts.Format(time.RFC3339), message); err != nil {
		return fmt.Errorf("failed to append alert: %w", err)
	}
	return nil
}
