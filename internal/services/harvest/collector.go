package harvest

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
)

// Collector drives a fetcher across consecutive search pages and
// deduplicates the resulting records by key.
type Collector struct {
	fetcher interfaces.Fetcher
	source  interfaces.SearchSource
	logger  arbor.ILogger
}

// NewCollector creates a Collector for source
func NewCollector(fetcher interfaces.Fetcher, source interfaces.SearchSource, logger arbor.ILogger) *Collector {
	return &Collector{
		fetcher: fetcher,
		source:  source,
		logger:  logger,
	}
}

// Collect issues exactly pageCount sequential requests of pageSize items at
// offset page*pageSize. Empty pages do not end pagination early. Items without
// a key are skipped; for duplicate keys the first occurrence in page order wins.
// A fetch failure aborts the whole collection.
func (c *Collector) Collect(ctx context.Context, query string, pageCount int, pageSize int) ([]models.Record, error) {
	if pageCount < 0 || pageSize < 0 {
		return nil, fmt.Errorf("page count and page size must not be negative (got %d, %d)", pageCount, pageSize)
	}

	seen := make(models.KeySet)
	records := make([]models.Record, 0, capacityHint(pageCount, pageSize))
	skipped := 0
	duplicates := 0

	for page := 0; page < pageCount; page++ {
		offset := page * pageSize
		endpoint, params := c.source.SearchRequest(query, offset, pageSize)

		body, err := c.fetcher.Fetch(ctx, endpoint, params)
		if err != nil {
			return nil, fmt.Errorf("%s search page %d/%d: %w", c.source.Name(), page+1, pageCount, err)
		}

		items, err := c.source.DecodeSearch(body)
		if err != nil {
			return nil, fmt.Errorf("%s search page %d/%d: %w", c.source.Name(), page+1, pageCount, err)
		}

		for _, item := range items {
			record, ok := c.source.NormalizeItem(item)
			if !ok {
				skipped++
				c.logger.Debug().
					Str("source", c.source.Name()).
					Int("page", page+1).
					Msg("Skipping search item without key")
				continue
			}
			if seen.Has(record.Key) {
				duplicates++
				continue
			}
			seen.Add(record.Key)
			records = append(records, record)
		}

		c.logger.Info().
			Str("source", c.source.Name()).
			Int("page", page+1).
			Int("pages", pageCount).
			Int("items", len(items)).
			Int("collected", len(records)).
			Msg("Search page collected")
	}

	c.logger.Info().
		Str("source", c.source.Name()).
		Str("query", query).
		Int("records", len(records)).
		Int("skipped", skipped).
		Int("duplicates", duplicates).
		Msg("Search collection complete")

	return records, nil
}

// maxCapacityHint bounds the preallocation made from caller-supplied page sizes
const maxCapacityHint = 1024

func capacityHint(pageCount, pageSize int) int {
	if pageCount == 0 || pageSize == 0 {
		return 0
	}
	if pageCount > maxCapacityHint/pageSize {
		return maxCapacityHint
	}
	return pageCount * pageSize
}
