package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/models"
)

// PageRenderer returns the DOM of a page once selector has appeared
type PageRenderer interface {
	Render(ctx context.Context, pageURL string, selector string) (string, error)
}

// ChromeRenderer renders pages in a headless Chrome via chromedp
type ChromeRenderer struct {
	userAgent string
	headless  bool
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewChromeRenderer creates a renderer; timeout bounds navigation plus the selector wait
func NewChromeRenderer(userAgent string, headless bool, timeout time.Duration, logger arbor.ILogger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ChromeRenderer{
		userAgent: userAgent,
		headless:  headless,
		timeout:   timeout,
		logger:    logger,
	}
}

// Render launches a browser, navigates to pageURL, waits for selector and returns the document HTML
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string, selector string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			r.logger.Debug().Msg(fmt.Sprintf(s, i...))
		}),
	)
	defer browserCancel()

	renderCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	r.logger.Debug().Str("url", pageURL).Str("selector", selector).Msg("Rendering page")

	var html string
	err := chromedp.Run(renderCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &models.FetchError{Endpoint: pageURL, Attempts: 1, Err: err}
	}
	return html, nil
}

// RenderedScraper extracts quotes from a page whose cards are injected by JavaScript
type RenderedScraper struct {
	renderer PageRenderer
	logger   arbor.ILogger
}

// NewRenderedScraper creates a scraper over renderer
func NewRenderedScraper(renderer PageRenderer, logger arbor.ILogger) *RenderedScraper {
	return &RenderedScraper{
		renderer: renderer,
		logger:   logger,
	}
}

// Scrape renders pageURL, waits for the first quote card and parses every card on the page
func (s *RenderedScraper) Scrape(ctx context.Context, pageURL string) ([]models.Row, error) {
	html, err := s.renderer.Render(ctx, pageURL, ".quote")
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	rows, _, err := ParseQuotes([]byte(html), pageURL)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("url", pageURL).
		Int("quotes", len(rows)).
		Msg("Rendered quotes page scraped")

	return rows, nil
}
