package scheduler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/models"
)

// MetricsStore persists JobMetrics as a single JSON document.
// Every Record is a full read-modify-write of the file.
type MetricsStore struct {
	path       string
	historyCap int
	logger     arbor.ILogger

	mu     sync.Mutex
	cached models.JobMetrics
}

// NewMetricsStore creates a store for path. An empty path keeps metrics in memory only.
func NewMetricsStore(path string, historyCap int, logger arbor.ILogger) *MetricsStore {
	if historyCap <= 0 {
		historyCap = 100
	}
	return &MetricsStore{
		path:       path,
		historyCap: historyCap,
		logger:     logger,
		cached:     emptyMetrics(),
	}
}

func emptyMetrics() models.JobMetrics {
	return models.JobMetrics{
		SuccessRate: "N/A",
		JobHistory:  []models.JobHistoryEntry{},
	}
}

// Path returns the metrics file location
func (s *MetricsStore) Path() string {
	return s.path
}

// Load reads the metrics file. A missing file yields zeroed metrics.
func (s *MetricsStore) Load() (models.JobMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *MetricsStore) load() (models.JobMetrics, error) {
	if s.path == "" {
		return copyMetrics(s.cached), nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyMetrics(), nil
	}
	if err != nil {
		return models.JobMetrics{}, fmt.Errorf("failed to read metrics file: %w", err)
	}

	metrics := emptyMetrics()
	if err := json.Unmarshal(data, &metrics); err != nil {
		return models.JobMetrics{}, fmt.Errorf("failed to decode metrics file %s: %w", s.path, err)
	}
	if metrics.JobHistory == nil {
		metrics.JobHistory = []models.JobHistoryEntry{}
	}
	return metrics, nil
}

// Record applies one job outcome and rewrites the metrics file.
// When the file cannot be read the last good in-memory copy is used so that
// counting continues; the returned error reports the persistence problem.
func (s *MetricsStore) Record(entry models.JobHistoryEntry) (models.JobMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics, loadErr := s.load()
	if loadErr != nil {
		s.logger.Warn().
			Err(loadErr).
			Str("path", s.path).
			Msg("Metrics file unreadable, continuing from in-memory metrics")
		metrics = copyMetrics(s.cached)
	}

	metrics.Record(entry, s.historyCap)
	s.cached = copyMetrics(metrics)

	if err := s.write(metrics); err != nil {
		return metrics, errors.Join(loadErr, err)
	}
	return metrics, loadErr
}

func (s *MetricsStore) write(metrics models.JobMetrics) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(metrics); err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace metrics file: %w", err)
	}
	return nil
}

func copyMetrics(m models.JobMetrics) models.JobMetrics {
	out := m
	out.JobHistory = append([]models.JobHistoryEntry{}, m.JobHistory...)
	if m.LastExecution != nil {
		ts := *m.LastExecution
		out.LastExecution = &ts
	}
	return out
}
