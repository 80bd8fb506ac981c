package quotes

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/models"
)

func quotePage(next string, quotes ...[3]string) string {
	html := `<html><body><div class="col-md-8">`
	for _, q := range quotes {
		html += fmt.Sprintf(`<div class="quote"><span class="text">%s</span>
<span>by <small class="author">%s</small></span>
<div class="tags">Tags: %s</div></div>`, q[0], q[1], q[2])
	}
	html += `<nav><ul class="pager">`
	if next != "" {
		html += fmt.Sprintf(`<li class="next"><a href="%s">Next <span>&rarr;</span></a></li>`, next)
	}
	html += `</ul></nav></div></body></html>`
	return html
}

func tags(names ...string) string {
	out := ""
	for _, n := range names {
		out += fmt.Sprintf(`<a class="tag" href="/tag/%s/">%s</a> `, n, n)
	}
	return out
}

func TestParseQuotes(t *testing.T) {
	html := quotePage("/page/2/",
		[3]string{"“The world as we have created it.”", "Albert Einstein", tags("change", "thinking")},
		[3]string{"  “A day without sunshine.” ", "Steve Martin", ""},
	)

	rows, next, err := ParseQuotes([]byte(html), "https://quotes.toscrape.com/")
	require.NoError(t, err)

	assert.Equal(t, "https://quotes.toscrape.com/page/2/", next)
	require.Len(t, rows, 2)
	assert.Equal(t, "“The world as we have created it.”", rows[0].Key)
	assert.Equal(t, "Albert Einstein", rows[0].Get("author"))
	assert.Equal(t, "change|thinking", rows[0].Get("tags"))
	assert.Equal(t, "“A day without sunshine.”", rows[1].Get("quote"))
	assert.Equal(t, "", rows[1].Get("tags"))
}

func TestParseQuotes_LastPage(t *testing.T) {
	rows, next, err := ParseQuotes([]byte(quotePage("", [3]string{"q", "a", ""})), "https://quotes.toscrape.com/page/10/")
	require.NoError(t, err)
	assert.Empty(t, next)
	assert.Len(t, rows, 1)
}

func TestParseQuotes_RelativeNextFromSubpage(t *testing.T) {
	_, next, err := ParseQuotes([]byte(quotePage("/page/3/")), "https://quotes.toscrape.com/page/2/")
	require.NoError(t, err)
	assert.Equal(t, "https://quotes.toscrape.com/page/3/", next)
}

type pageFetcher struct {
	pages map[string]string
	calls []string
}

func (f *pageFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	f.calls = append(f.calls, endpoint)
	body, ok := f.pages[endpoint]
	if !ok {
		return nil, &models.FetchError{Endpoint: endpoint, Attempts: 3, StatusCode: 404, Err: errors.New("not found")}
	}
	return []byte(body), nil
}

func TestScraper_FollowsNextUntilLastPage(t *testing.T) {
	base := "https://quotes.toscrape.com"
	fetcher := &pageFetcher{pages: map[string]string{
		base + "/":        quotePage("/page/2/", [3]string{"q1", "a", ""}),
		base + "/page/2/": quotePage("/page/3/", [3]string{"q2", "b", ""}),
		base + "/page/3/": quotePage("", [3]string{"q3", "c", ""}),
	}}

	rows, err := NewScraper(fetcher, arbor.NewLogger()).Scrape(context.Background(), base+"/", 5)
	require.NoError(t, err)
	assert.Len(t, fetcher.calls, 3)
	assert.Equal(t, []string{"q1", "q2", "q3"}, []string{rows[0].Key, rows[1].Key, rows[2].Key})
}

func TestScraper_PageBudget(t *testing.T) {
	base := "https://quotes.toscrape.com"
	fetcher := &pageFetcher{pages: map[string]string{
		base + "/":        quotePage("/page/2/", [3]string{"q1", "a", ""}),
		base + "/page/2/": quotePage("/page/3/", [3]string{"q2", "b", ""}),
	}}

	rows, err := NewScraper(fetcher, arbor.NewLogger()).Scrape(context.Background(), base+"/", 2)
	require.NoError(t, err)
	assert.Len(t, fetcher.calls, 2)
	assert.Len(t, rows, 2)
}

func TestScraper_FetchErrorKeepsEarlierRows(t *testing.T) {
	base := "https://quotes.toscrape.com"
	fetcher := &pageFetcher{pages: map[string]string{
		base + "/": quotePage("/page/2/", [3]string{"q1", "a", ""}),
	}}

	rows, err := NewScraper(fetcher, arbor.NewLogger()).Scrape(context.Background(), base+"/", 5)
	var fetchErr *models.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Len(t, rows, 1)
}

type fakeRenderer struct {
	html     string
	err      error
	selector string
}

func (r *fakeRenderer) Render(ctx context.Context, pageURL string, selector string) (string, error) {
	r.selector = selector
	return r.html, r.err
}

func TestRenderedScraper(t *testing.T) {
	renderer := &fakeRenderer{html: quotePage("", [3]string{"q1", "a", tags("x")}, [3]string{"q2", "b", ""})}

	rows, err := NewRenderedScraper(renderer, arbor.NewLogger()).Scrape(context.Background(), "https://quotes.toscrape.com/js-delayed/")
	require.NoError(t, err)
	assert.Equal(t, ".quote", renderer.selector)
	require.Len(t, rows, 2)
	assert.Equal(t, "x", rows[0].Get("tags"))
}

func TestRenderedScraper_RenderError(t *testing.T) {
	renderer := &fakeRenderer{err: &models.FetchError{Endpoint: "u", Attempts: 1, Err: errors.New("timeout")}}

	_, err := NewRenderedScraper(renderer, arbor.NewLogger()).Scrape(context.Background(), "u")
	var fetchErr *models.FetchError
	assert.True(t, errors.As(err, &fetchErr))
}
