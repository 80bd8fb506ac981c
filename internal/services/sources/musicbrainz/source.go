// Package musicbrainz adapts the MusicBrainz web service (ws/2) to the
// search and detail source contracts used by the harvest pipeline.
package musicbrainz

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/harvester/internal/models"
)

const (
	// DetailIncludes are the relations requested with each recording lookup
	DetailIncludes = "artists+releases+tags+ratings+genres"

	// KeyColumn is the table column holding the recording MBID
	KeyColumn = "mbid"

	topN = 5
)

var skeletonColumns = []string{KeyColumn, "title", "artist", "length_ms", "score"}

var detailColumns = []string{KeyColumn, "title", "artist", "releases_count", "top_tags", "top_genres", "rating_value", "rating_votes"}

// Source implements interfaces.SearchSource and interfaces.DetailSource for recordings
type Source struct {
	baseURL string
}

// NewSource creates a recording source against baseURL (e.g. https://musicbrainz.org/ws/2)
func NewSource(baseURL string) *Source {
	return &Source{baseURL: strings.TrimRight(baseURL, "/")}
}

// Name identifies the source in logs
func (s *Source) Name() string {
	return "musicbrainz"
}

// SearchRequest builds the /recording search request for one page
func (s *Source) SearchRequest(query string, offset, limit int) (string, map[string]string) {
	return s.baseURL + "/recording", map[string]string{
		"query":  query,
		"fmt":    "json",
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}
}

// DecodeSearch returns the "recordings" list of a search response.
// A response without the list is treated as an empty page.
func (s *Source) DecodeSearch(body []byte) ([]map[string]interface{}, error) {
	var resp struct {
		Recordings []map[string]interface{} `json:"recordings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &models.ParseError{Field: "recordings", Reason: fmt.Sprintf("invalid search response: %v", err)}
	}
	return resp.Recordings, nil
}

// NormalizeItem maps a search hit to a skeleton record keyed by its MBID
func (s *Source) NormalizeItem(item map[string]interface{}) (models.Record, bool) {
	id, _ := item["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Record{}, false
	}

	return models.Record{
		Key: id,
		Fields: map[string]interface{}{
			"title":     item["title"],
			"artist":    firstArtistName(item),
			"length_ms": item["length"],
			"score":     item["score"],
		},
	}, true
}

// SkeletonColumns lists the search table columns
func (s *Source) SkeletonColumns() []string {
	return append([]string(nil), skeletonColumns...)
}

// DetailRequest builds the /recording/<mbid> lookup request
func (s *Source) DetailRequest(key string) (string, map[string]string) {
	return s.baseURL + "/recording/" + url.PathEscape(key), map[string]string{
		"inc": DetailIncludes,
		"fmt": "json",
	}
}

// FlattenDetail reduces a recording lookup to one table row.
// Only the key is required; absent relations produce empty or zero values.
func (s *Source) FlattenDetail(payload models.DetailPayload) (models.Row, error) {
	if strings.TrimSpace(payload.Key) == "" {
		return models.Row{}, &models.ParseError{Field: KeyColumn, Reason: "missing recording id"}
	}

	detail := payload.Raw
	values := map[string]string{
		KeyColumn:        payload.Key,
		"title":          models.FormatScalar(scalar(detail["title"])),
		"artist":         models.FormatScalar(firstArtistName(detail)),
		"releases_count": strconv.Itoa(len(asList(detail["releases"]))),
		"top_tags":       joinNames(asList(detail["tags"]), topN),
		"top_genres":     joinNames(asList(detail["genres"]), topN),
		"rating_value":   "",
		"rating_votes":   "",
	}

	if rating, ok := detail["rating"].(map[string]interface{}); ok {
		values["rating_value"] = models.FormatScalar(scalar(rating["value"]))
		values["rating_votes"] = models.FormatScalar(scalar(rating["votes-count"]))
	}

	return models.Row{Key: payload.Key, Values: values}, nil
}

// KeyColumn is the details table key column
func (s *Source) KeyColumn() string {
	return KeyColumn
}

// DetailColumns lists the details table columns
func (s *Source) DetailColumns() []string {
	return append([]string(nil), detailColumns...)
}

// ArtifactName returns the raw payload file name for key
func (s *Source) ArtifactName(key string) string {
	return "recording_" + key + ".json"
}

// firstArtistName returns the name of the first artist credit, or nil
func firstArtistName(item map[string]interface{}) interface{} {
	credits := asList(item["artist-credit"])
	if len(credits) == 0 {
		return nil
	}
	credit, ok := credits[0].(map[string]interface{})
	if !ok {
		return nil
	}
	return scalar(credit["name"])
}

// joinNames joins the non-empty "name" fields of the first n entries with "|"
func joinNames(entries []interface{}, n int) string {
	if len(entries) > n {
		entries = entries[:n]
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		if name, _ := m["name"].(string); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

func asList(v interface{}) []interface{} {
	list, _ := v.([]interface{})
	return list
}

// scalar drops nested values so only JSON scalars reach a table cell
func scalar(v interface{}) interface{} {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return nil
	default:
		return v
	}
}
