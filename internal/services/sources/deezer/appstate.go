package deezer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/harvester/internal/models"
)

// appStateMarker precedes the JSON state object embedded in Deezer pages
const appStateMarker = "window.__DZR_APP_STATE__ = "

// ExtractAppState locates the embedded application state and decodes it.
// Decoding stops at the end of the first JSON value, so the script text that
// follows the object is ignored.
func ExtractAppState(html string) (map[string]interface{}, error) {
	start := strings.Index(html, appStateMarker)
	if start < 0 {
		return nil, &models.ParseError{Field: "__DZR_APP_STATE__", Reason: "marker not found in page"}
	}

	rest := html[start+len(appStateMarker):]
	open := strings.IndexByte(rest, '{')
	if open < 0 {
		return nil, &models.ParseError{Field: "__DZR_APP_STATE__", Reason: "no JSON object after marker"}
	}

	var state map[string]interface{}
	if err := json.NewDecoder(strings.NewReader(rest[open:])).Decode(&state); err != nil {
		return nil, &models.ParseError{Field: "__DZR_APP_STATE__", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return state, nil
}
