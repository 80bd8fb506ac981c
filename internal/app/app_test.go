package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/models"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "outputs")
	cfg.Fetch.PoliteDelay = "1ms"
	cfg.Fetch.BackoffUnit = "1ms"
	cfg.Fetch.Retries = 1
	cfg.Quotes.Delay = "1ms"
	return cfg
}

func newTestApp(t *testing.T, cfg *common.Config) *App {
	t.Helper()
	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	return a
}

func TestNew_CreatesOutputDir(t *testing.T) {
	cfg := testConfig(t)
	newTestApp(t, cfg)

	info, err := os.Stat(cfg.Output.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewScheduler_DefaultJobs(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	svc, err := a.NewScheduler()
	require.NoError(t, err)

	statuses := svc.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "musicbrainz_hourly", statuses[0].ID)
	assert.Equal(t, "cron(0 * * * *)", statuses[0].Trigger)
	assert.Equal(t, "quotes_every_30min", statuses[1].ID)
	assert.Equal(t, filepath.Join(a.Config.Output.Dir, "scheduler_metrics.json"), svc.Metrics().Path())
}

func TestNewScheduler_ConfiguredJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Jobs = []common.JobConfig{
		{ID: "deezer_daily", Pipeline: PipelineDeezer, Cron: "0 6 * * *"},
		{ID: "mb_interval", Pipeline: PipelineMusicBrainz, IntervalMinutes: 90},
	}
	a := newTestApp(t, cfg)

	svc, err := a.NewScheduler()
	require.NoError(t, err)

	statuses := svc.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "deezer_daily", statuses[0].ID)
	assert.Equal(t, "mb_interval", statuses[1].ID)
	assert.Equal(t, "every(90m)", statuses[1].Trigger)
}

func TestNewScheduler_RejectsUnknownPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Jobs = []common.JobConfig{{ID: "x", Pipeline: "spotify", Cron: "* * * * *"}}
	a := newTestApp(t, cfg)

	_, err := a.NewScheduler()
	require.Error(t, err)

	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewScheduler_RejectsInvalidTrigger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Jobs = []common.JobConfig{{ID: "bad", Pipeline: PipelineQuotes, Cron: "not a cron"}}
	a := newTestApp(t, cfg)

	_, err := a.NewScheduler()
	require.Error(t, err)
}

func TestSourceTable(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	table, err := a.SourceTable(PipelineMusicBrainz)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Config.Output.Dir, "musicbrainz_details.csv"), table.Path())

	table, err = a.SourceTable(PipelineQuotes)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Config.Output.Dir, QuotesStaticTable), table.Path())

	_, err = a.SourceTable(PipelineDeezer)
	assert.Error(t, err)
}

func TestRunInsights_NoData(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	_, err := a.RunInsights(context.Background(), PipelineQuotes, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the quotes pipeline first")
}

func TestRunQuotes_StaticMergesIntoTable(t *testing.T) {
	page := func(next string, quotes ...string) string {
		var b strings.Builder
		b.WriteString(`<html><body>`)
		for _, q := range quotes {
			fmt.Fprintf(&b, `<div class="quote"><span class="text">%s</span><small class="author">Anon</small><div class="tags"><a class="tag">wit</a></div></div>`, q)
		}
		if next != "" {
			fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href="%s">Next</a></li></ul>`, next)
		}
		b.WriteString(`</body></html>`)
		return b.String()
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, page("/page/2/", "first", "second"))
		case "/page/2/":
			fmt.Fprint(w, page("", "third", "first"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Quotes.BaseURL = server.URL
	a := newTestApp(t, cfg)

	result, err := a.RunQuotes(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 3, result.Total)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, QuotesStaticTable))
	require.NoError(t, err)
	assert.Equal(t, "quote,author,tags\nfirst,Anon,wit\nsecond,Anon,wit\nthird,Anon,wit\n", string(data))

	result, err = a.RunQuotes(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 3, result.Total)
}
