// -----------------------------------------------------------------------
// Application wiring - builds pipelines, scrapers and the scheduler
// from one resolved configuration
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/httpclient"
	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
	"github.com/ternarybob/harvester/internal/services/fetcher"
	"github.com/ternarybob/harvester/internal/services/harvest"
	"github.com/ternarybob/harvester/internal/services/insights"
	"github.com/ternarybob/harvester/internal/services/llm"
	"github.com/ternarybob/harvester/internal/services/mailer"
	"github.com/ternarybob/harvester/internal/services/scheduler"
	"github.com/ternarybob/harvester/internal/services/sources/deezer"
	"github.com/ternarybob/harvester/internal/services/sources/musicbrainz"
	"github.com/ternarybob/harvester/internal/services/sources/quotes"
)

// Pipeline names accepted by [[scheduler.jobs]]
const (
	PipelineMusicBrainz = "musicbrainz"
	PipelineQuotes      = "quotes"
	PipelineDeezer      = "deezer"
)

// Table file names for the quotes scrapers
const (
	QuotesStaticTable   = "quotes_static.csv"
	QuotesRenderedTable = "quotes_rendered.csv"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Fetcher is the shared rate-limited fetcher for API sources
	Fetcher *fetcher.Service
	Mailer  *mailer.Service
}

// New creates the output directory and the shared services
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Fetcher: fetcher.NewService(
			httpclient.NewClient(cfg.Fetch),
			fetcher.OptionsFromConfig(cfg.Fetch),
			logger,
		),
		Mailer: mailer.NewService(cfg.Alerts.Email, logger),
	}

	logger.Debug().
		Str("output_dir", cfg.Output.Dir).
		Str("user_agent", cfg.Fetch.UserAgent).
		Int("retries", cfg.Fetch.Retries).
		Str("polite_delay", cfg.Fetch.PoliteDelay).
		Msg("Application initialized")

	return app, nil
}

// MusicBrainzPipeline wires the recording search and resumable detail store
func (a *App) MusicBrainzPipeline() *harvest.Pipeline {
	cfg := a.Config.MusicBrainz
	source := musicbrainz.NewSource(cfg.BaseURL)

	store := harvest.NewDetailStore(
		a.Fetcher,
		source,
		harvest.NewTable(a.Config.OutputPath(cfg.DetailsTable), source.KeyColumn()),
		harvest.NewArtifactStore(a.Config.OutputPath(cfg.ArtifactsDir)),
		a.Logger,
	)

	return harvest.NewPipeline(
		PipelineMusicBrainz,
		harvest.NewCollector(a.Fetcher, source, a.Logger),
		store,
		harvest.NewTable(a.Config.OutputPath(cfg.SearchTable), source.KeyColumn()),
		source.SkeletonColumns(),
		a.Logger,
	)
}

// MusicBrainzQuery returns the configured search query
func (a *App) MusicBrainzQuery() harvest.Query {
	cfg := a.Config.MusicBrainz
	return harvest.Query{Text: cfg.Query, Pages: cfg.Pages, PageSize: cfg.Limit}
}

// RunMusicBrainz runs one search -> detail harvest
func (a *App) RunMusicBrainz(ctx context.Context) (*harvest.PipelineResult, error) {
	return a.MusicBrainzPipeline().Run(ctx, a.MusicBrainzQuery())
}

// RunQuotes scrapes quotes and merges them into the static or rendered table
func (a *App) RunQuotes(ctx context.Context, rendered bool) (harvest.MergeResult, error) {
	cfg := a.Config.Quotes

	var rows []models.Row
	var err error
	tableName := QuotesStaticTable

	if rendered {
		tableName = QuotesRenderedTable
		renderer := quotes.NewChromeRenderer(
			a.Config.Fetch.UserAgent,
			cfg.Headless,
			common.ParseDurationOr(cfg.RenderTimeout, 0),
			a.Logger,
		)
		rows, err = quotes.NewRenderedScraper(renderer, a.Logger).Scrape(ctx, cfg.RenderedURL)
	} else {
		options := fetcher.OptionsFromConfig(a.Config.Fetch)
		options.PoliteDelay = common.ParseDurationOr(cfg.Delay, options.PoliteDelay)
		pageFetcher := fetcher.NewService(httpclient.NewClient(a.Config.Fetch), options, a.Logger)

		startURL := strings.TrimRight(cfg.BaseURL, "/") + "/"
		rows, err = quotes.NewScraper(pageFetcher, a.Logger).Scrape(ctx, startURL, cfg.Pages)
	}

	table := harvest.NewTable(a.Config.OutputPath(tableName), quotes.KeyColumn)
	result, mergeErr := table.Merge(rows, quotes.Columns)
	if err != nil {
		return result, err
	}
	if mergeErr != nil {
		return result, mergeErr
	}

	a.Logger.Info().
		Str("table", table.Path()).
		Int("scraped", len(rows)).
		Int("added", result.Added).
		Int("rows", result.Total).
		Msg("Quotes saved")

	return result, nil
}

// RunDeezer extracts the embedded application state from the configured page
func (a *App) RunDeezer(ctx context.Context) (*deezer.Result, error) {
	cfg := a.Config.Deezer

	client := httpclient.NewBrowserClient(
		a.Config.Fetch,
		deezer.BrowserUserAgent,
		deezer.BrowserHeaders,
		deezer.SessionCookies(cfg.Cookie, cfg.SID),
	)
	pageFetcher := fetcher.NewService(client, fetcher.OptionsFromConfig(a.Config.Fetch), a.Logger)

	svc := deezer.NewService(
		pageFetcher,
		harvest.NewArtifactStore(a.Config.Output.Dir),
		cfg.OutputFile,
		a.Config.OutputPath(cfg.DebugDir),
		a.Logger,
	)
	return svc.Run(ctx, cfg.TargetPage)
}

// SourceTable returns the persisted table analysed for an insights source
func (a *App) SourceTable(source string) (*harvest.Table, error) {
	switch source {
	case PipelineMusicBrainz:
		return harvest.NewTable(a.Config.OutputPath(a.Config.MusicBrainz.DetailsTable), musicbrainz.KeyColumn), nil
	case PipelineQuotes:
		return harvest.NewTable(a.Config.OutputPath(QuotesStaticTable), quotes.KeyColumn), nil
	default:
		return nil, fmt.Errorf("unknown insights source %q (expected musicbrainz or quotes)", source)
	}
}

// RunInsights analyses a harvested table with the configured LLM provider and
// writes llm_insights_<source>.{json,md,html}. When email is true the report
// is also mailed to the alert recipients.
func (a *App) RunInsights(ctx context.Context, source string, email bool) (*insights.Report, error) {
	table, err := a.SourceTable(source)
	if err != nil {
		return nil, err
	}
	if !table.Exists() {
		return nil, fmt.Errorf("no %s data found at %s - run the %s pipeline first", source, table.Path(), source)
	}

	rows, columns, err := table.Load()
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(ctx, a.Config, a.Logger)
	if err != nil {
		return nil, err
	}

	result, err := insights.NewAnalyzer(provider, a.Config.LLM.MaxSamples, a.Logger).Analyze(ctx, source, rows, columns)
	if err != nil {
		return nil, err
	}

	name := "llm_insights_" + source
	report, err := insights.WriteReport(a.Config.Output.Dir, name, result)
	if err != nil {
		return nil, err
	}

	if email {
		attachment := mailer.Attachment{Filename: name + ".md", ContentType: "text/markdown", Content: []byte(report.Markdown)}
		if err := a.Mailer.SendReport(ctx, "Harvester insights: "+source, report.HTML, report.Markdown, []mailer.Attachment{attachment}); err != nil {
			return report, err
		}
	}

	return report, nil
}

// PipelineJob returns the job function for a named pipeline
func (a *App) PipelineJob(pipeline string) (interfaces.JobFunc, error) {
	switch pipeline {
	case PipelineMusicBrainz:
		return func(ctx context.Context) error {
			_, err := a.RunMusicBrainz(ctx)
			return err
		}, nil
	case PipelineQuotes:
		return func(ctx context.Context) error {
			_, err := a.RunQuotes(ctx, false)
			return err
		}, nil
	case PipelineDeezer:
		return func(ctx context.Context) error {
			_, err := a.RunDeezer(ctx)
			return err
		}, nil
	default:
		return nil, &models.ConfigurationError{JobID: pipeline, Reason: "unknown pipeline"}
	}
}

// DefaultJobs is used when no [[scheduler.jobs]] are configured
func DefaultJobs() []common.JobConfig {
	return []common.JobConfig{
		{ID: "musicbrainz_hourly", Pipeline: PipelineMusicBrainz, Cron: "0 * * * *"},
		{ID: "quotes_every_30min", Pipeline: PipelineQuotes, Cron: "*/30 * * * *"},
	}
}

// NewScheduler builds the scheduler and registers every configured job
func (a *App) NewScheduler() (*scheduler.Service, error) {
	cfg := a.Config.Scheduler
	cfg.MetricsFile = a.Config.OutputPath(cfg.MetricsFile)
	cfg.AlertLog = a.Config.OutputPath(cfg.AlertLog)

	var notifier interfaces.AlertNotifier
	if a.Mailer.IsConfigured() {
		notifier = a.Mailer
	}
	svc := scheduler.NewService(cfg, notifier, a.Logger)

	jobs := cfg.Jobs
	if len(jobs) == 0 {
		jobs = DefaultJobs()
		a.Logger.Info().Msg("No jobs configured, registering default jobs")
	}

	for _, job := range jobs {
		fn, err := a.PipelineJob(job.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.ID, err)
		}
		trigger := models.Trigger{Cron: job.Cron, IntervalMinutes: job.IntervalMinutes}
		if err := svc.AddJob(job.ID, fn, trigger); err != nil {
			return nil, err
		}
	}

	return svc, nil
}

// LogDir returns the directory used for log and crash files
func (a *App) LogDir() string {
	return filepath.Join(a.Config.Output.Dir, "logs")
}
