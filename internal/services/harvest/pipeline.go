package harvest

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/models"
)

// Query selects what a pipeline run searches for
type Query struct {
	Text     string
	Pages    int
	PageSize int
}

// PipelineResult summarises one search -> detail run
type PipelineResult struct {
	RunID   string
	Records []models.Record
	Sync    SyncResult
}

// Pipeline runs the search collection and then the resumable detail sync
type Pipeline struct {
	name            string
	collector       *Collector
	store           *DetailStore
	skeleton        *Table
	skeletonColumns []string
	logger          arbor.ILogger
}

// NewPipeline wires a collector and detail store. skeleton may be nil to skip
// persisting the search results.
func NewPipeline(name string, collector *Collector, store *DetailStore, skeleton *Table, skeletonColumns []string, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		name:            name,
		collector:       collector,
		store:           store,
		skeleton:        skeleton,
		skeletonColumns: skeletonColumns,
		logger:          logger,
	}
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.name
}

// Run harvests the skeleton key set, saves it, then syncs only the new details
func (p *Pipeline) Run(ctx context.Context, query Query) (*PipelineResult, error) {
	result := &PipelineResult{RunID: common.NewRunID()}

	p.logger.Info().
		Str("pipeline", p.name).
		Str("run_id", result.RunID).
		Str("query", query.Text).
		Int("pages", query.Pages).
		Int("page_size", query.PageSize).
		Msg("Harvest run started")

	records, err := p.collector.Collect(ctx, query.Text, query.Pages, query.PageSize)
	if err != nil {
		return result, err
	}
	result.Records = records

	if p.skeleton != nil {
		if err := p.skeleton.Write(RecordsToRows(records), p.skeletonColumns); err != nil {
			return result, fmt.Errorf("failed to save search results: %w", err)
		}
		p.logger.Info().
			Str("table", p.skeleton.Path()).
			Int("rows", len(records)).
			Msg("Search results saved")
	}

	sync, err := p.store.Run(ctx, models.RecordKeys(records))
	result.Sync = sync
	if err != nil {
		return result, err
	}

	p.logger.Info().
		Str("pipeline", p.name).
		Str("run_id", result.RunID).
		Int("records", len(records)).
		Int("fetched", sync.Fetched).
		Int("table_rows", sync.Merge.Total).
		Msg("Harvest run complete")

	return result, nil
}
