package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
)

// SyncResult summarises one resumable detail run
type SyncResult struct {
	Requested   int // distinct keys asked for
	AlreadyDone int // keys skipped because the table already had them
	Fetched     int // details fetched and persisted in this run
	Merge       MergeResult
}

// DetailStore fetches details only for keys missing from its table,
// saves each raw payload as an artifact and merges flattened rows into the table.
// It is resumable across restarts but assumes a single writer.
type DetailStore struct {
	fetcher   interfaces.Fetcher
	source    interfaces.DetailSource
	table     *Table
	artifacts *ArtifactStore
	logger    arbor.ILogger
}

// NewDetailStore creates a DetailStore
func NewDetailStore(fetcher interfaces.Fetcher, source interfaces.DetailSource, table *Table, artifacts *ArtifactStore, logger arbor.ILogger) *DetailStore {
	return &DetailStore{
		fetcher:   fetcher,
		source:    source,
		table:     table,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Table returns the persisted detail table
func (s *DetailStore) Table() *Table {
	return s.table
}

// Run reads the resume set once from the table, syncs the missing keys and
// merges whatever rows were produced. When a detail fails terminally the rows
// fetched before it are still merged and the failure is returned.
func (s *DetailStore) Run(ctx context.Context, keys []string) (SyncResult, error) {
	done, err := s.table.Keys()
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to load resume set: %w", err)
	}

	pending := PendingKeys(keys, done)
	result := SyncResult{
		Requested:   len(UniqueKeys(keys)),
		AlreadyDone: len(UniqueKeys(keys)) - len(pending),
	}

	s.logger.Info().
		Str("table", s.table.Path()).
		Int("requested", result.Requested).
		Int("already_done", result.AlreadyDone).
		Int("pending", len(pending)).
		Msg("Resuming detail sync")

	rows, syncErr := s.Sync(ctx, keys, done)
	result.Fetched = len(rows)

	merge, mergeErr := s.table.Merge(rows, s.source.DetailColumns())
	result.Merge = merge

	if syncErr != nil || mergeErr != nil {
		if mergeErr != nil {
			mergeErr = fmt.Errorf("failed to merge detail rows: %w", mergeErr)
		}
		return result, errors.Join(syncErr, mergeErr)
	}

	if merge.Written {
		s.logger.Info().
			Str("table", s.table.Path()).
			Int("added", merge.Added).
			Int("rows", merge.Total).
			Msg("Detail table updated")
	} else {
		s.logger.Info().
			Str("table", s.table.Path()).
			Int("rows", merge.Total).
			Msg("No new details to fetch")
	}

	return result, nil
}

// Sync fetches, persists and flattens the details of keys not in done, in the
// order given. done is not refreshed during the call. On the first terminal
// failure it stops and returns the rows produced so far together with the error.
func (s *DetailStore) Sync(ctx context.Context, keys []string, done models.KeySet) ([]models.Row, error) {
	pending := PendingKeys(keys, done)
	rows := make([]models.Row, 0, len(pending))

	for i, key := range pending {
		row, err := s.syncKey(ctx, key)
		if err != nil {
			s.logger.Error().
				Str("key", key).
				Int("index", i+1).
				Int("pending", len(pending)).
				Err(err).
				Msg("Detail sync aborted")
			return rows, err
		}
		rows = append(rows, row)

		s.logger.Debug().
			Str("key", key).
			Int("index", i+1).
			Int("pending", len(pending)).
			Msg("Detail fetched")
	}

	return rows, nil
}

func (s *DetailStore) syncKey(ctx context.Context, key string) (models.Row, error) {
	endpoint, params := s.source.DetailRequest(key)

	body, err := s.fetcher.Fetch(ctx, endpoint, params)
	if err != nil {
		return models.Row{}, fmt.Errorf("detail %s: %w", key, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Row{}, &models.ParseError{Key: key, Reason: fmt.Sprintf("invalid JSON payload: %v", err)}
	}
	if raw == nil {
		return models.Row{}, &models.ParseError{Key: key, Reason: "payload is not a JSON object"}
	}

	payload := models.DetailPayload{Key: key, Raw: raw}
	if _, err := s.artifacts.Save(s.source.ArtifactName(key), payload.Raw); err != nil {
		return models.Row{}, err
	}

	row, err := s.source.FlattenDetail(payload)
	if err != nil {
		return models.Row{}, err
	}
	return row, nil
}

// PendingKeys returns the distinct keys not in done, preserving input order
func PendingKeys(keys []string, done models.KeySet) []string {
	pending := make([]string, 0, len(keys))
	for _, key := range UniqueKeys(keys) {
		if done.Has(key) {
			continue
		}
		pending = append(pending, key)
	}
	return pending
}

// UniqueKeys drops empty and repeated keys, preserving first-seen order
func UniqueKeys(keys []string) []string {
	seen := make(models.KeySet, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" || seen.Has(key) {
			continue
		}
		seen.Add(key)
		out = append(out, key)
	}
	return out
}
