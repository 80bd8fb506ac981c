package deezer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/models"
	"github.com/ternarybob/harvester/internal/services/harvest"
)

const chartsPage = `<html><head><script>
window.__DZR_APP_STATE__ = {"TAB":{"track":{"data":[{"SNG_TITLE":"Curly {braces} \"quoted\"","ART_NAME":"A"}]}},"USER":{"USER_ID":0}};
window.other = {"x": 1};
</script></head></html>`

func TestExtractAppState(t *testing.T) {
	state, err := ExtractAppState(chartsPage)
	require.NoError(t, err)

	assert.Contains(t, state, "TAB")
	assert.Contains(t, state, "USER")
	assert.NotContains(t, state, "x")

	track := state["TAB"].(map[string]interface{})["track"].(map[string]interface{})["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, `Curly {braces} "quoted"`, track["SNG_TITLE"])
}

func TestExtractAppState_IgnoresTrailingScript(t *testing.T) {
	html := `<script>window.__DZR_APP_STATE__ = {"a": "}{", "b": {"c": [1, 2]}};window.__DZR_OTHER__ = {"d": 1};</script>`

	state, err := ExtractAppState(html)
	require.NoError(t, err)
	assert.Equal(t, "}{", state["a"])
	assert.Equal(t, map[string]interface{}{"c": []interface{}{1.0, 2.0}}, state["b"])
	assert.NotContains(t, state, "d")
}

func TestExtractAppState_Failures(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no marker", `<html>nothing here</html>`},
		{"no object", `window.__DZR_APP_STATE__ = null;`},
		{"unterminated", `window.__DZR_APP_STATE__ = {"a": {"b": 1}`},
		{"invalid json", `window.__DZR_APP_STATE__ = {a: 1};`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractAppState(tt.html)
			var parseErr *models.ParseError
			assert.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
		})
	}
}

func TestSessionCookies(t *testing.T) {
	cookies := SessionCookies("arl=abc; dzr_uniq_id=1", "sid-value")
	require.Len(t, cookies, 3)
	assert.Equal(t, "sid", cookies[2].Name)
	assert.Equal(t, ".deezer.com", cookies[2].Domain)

	cookies = SessionCookies("sid=from-header", "ignored")
	require.Len(t, cookies, 1)
	assert.Equal(t, "from-header", cookies[0].Value)

	assert.Empty(t, SessionCookies("", ""))
}

type staticFetcher struct {
	body string
	err  error
}

func (f staticFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	return []byte(f.body), f.err
}

func TestService_RunSavesState(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(staticFetcher{body: chartsPage}, harvest.NewArtifactStore(dir), "deezer_page.json", filepath.Join(dir, "debug"), arbor.NewLogger())

	result, err := svc.Run(context.Background(), "https://www.deezer.com/en/charts/track")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "deezer_page.json"), result.Path)
	assert.Equal(t, []string{"TAB", "USER"}, result.Keys)

	_, err = os.Stat(filepath.Join(dir, "debug", "error.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestService_RunDumpsUnparseablePage(t *testing.T) {
	dir := t.TempDir()
	debugDir := filepath.Join(dir, "debug")
	svc := NewService(staticFetcher{body: "<html>consent wall</html>"}, harvest.NewArtifactStore(dir), "deezer_page.json", debugDir, arbor.NewLogger())

	_, err := svc.Run(context.Background(), "https://www.deezer.com/en/charts/track")
	var parseErr *models.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "https://www.deezer.com/en/charts/track", parseErr.Key)

	dumped, err := os.ReadFile(filepath.Join(debugDir, "error.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>consent wall</html>", string(dumped))

	_, err = os.Stat(filepath.Join(dir, "deezer_page.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestService_RunFetchError(t *testing.T) {
	dir := t.TempDir()
	fetchErr := &models.FetchError{Endpoint: "p", Attempts: 3, StatusCode: 403, Err: errors.New("forbidden")}
	svc := NewService(staticFetcher{err: fetchErr}, harvest.NewArtifactStore(dir), "deezer_page.json", filepath.Join(dir, "debug"), arbor.NewLogger())

	_, err := svc.Run(context.Background(), "p")
	assert.ErrorIs(t, err, fetchErr)
	_, statErr := os.Stat(filepath.Join(dir, "debug"))
	assert.True(t, os.IsNotExist(statErr))
}
