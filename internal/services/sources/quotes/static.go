package quotes

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
)

// Scraper walks server-rendered quote listings by following the next link
type Scraper struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

// NewScraper creates a static listing scraper. Politeness between pages is
// the fetcher's responsibility.
func NewScraper(fetcher interfaces.Fetcher, logger arbor.ILogger) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Scrape fetches up to maxPages pages starting at startURL, stopping early when
// a page has no next link. Rows keep page order.
func (s *Scraper) Scrape(ctx context.Context, startURL string, maxPages int) ([]models.Row, error) {
	var rows []models.Row
	pageURL := startURL

	for page := 1; page <= maxPages && pageURL != ""; page++ {
		body, err := s.fetcher.Fetch(ctx, pageURL, nil)
		if err != nil {
			return rows, fmt.Errorf("quotes page %d: %w", page, err)
		}

		pageRows, next, err := ParseQuotes(body, pageURL)
		if err != nil {
			return rows, err
		}
		rows = append(rows, pageRows...)

		s.logger.Info().
			Str("url", pageURL).
			Int("page", page).
			Int("quotes", len(pageRows)).
			Bool("has_next", next != "").
			Msg("Quotes page scraped")

		pageURL = next
	}

	return rows, nil
}
