package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ternarybob/harvester/internal/models"
)

// fakeSource serves items from "/search" and details from "/item/<key>"
type fakeSource struct{}

func (fakeSource) Name() string { return "fake" }

func (fakeSource) SearchRequest(query string, offset, limit int) (string, map[string]string) {
	return "/search", map[string]string{"q": query, "offset": strconv.Itoa(offset), "limit": strconv.Itoa(limit)}
}

func (fakeSource) DecodeSearch(body []byte) ([]map[string]interface{}, error) {
	var resp struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &models.ParseError{Reason: err.Error()}
	}
	return resp.Items, nil
}

func (fakeSource) NormalizeItem(item map[string]interface{}) (models.Record, bool) {
	id, _ := item["id"].(string)
	if id == "" {
		return models.Record{}, false
	}
	return models.Record{Key: id, Fields: map[string]interface{}{"title": item["title"]}}, true
}

func (fakeSource) SkeletonColumns() []string { return []string{"id", "title"} }

func (fakeSource) DetailRequest(key string) (string, map[string]string) {
	return "/item/" + key, nil
}

func (fakeSource) FlattenDetail(payload models.DetailPayload) (models.Row, error) {
	if payload.Key == "" {
		return models.Row{}, &models.ParseError{Field: "id", Reason: "missing"}
	}
	return models.Row{Key: payload.Key, Values: map[string]string{
		"id":    payload.Key,
		"title": models.FormatScalar(payload.Raw["title"]),
	}}, nil
}

func (fakeSource) KeyColumn() string { return "id" }

func (fakeSource) DetailColumns() []string { return []string{"id", "title"} }

func (fakeSource) ArtifactName(key string) string { return "item_" + key + ".json" }

// fakeFetcher answers from canned bodies keyed by endpoint (+ offset for search)
type fakeFetcher struct {
	responses map[string]string
	failures  map[string]error
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[string]string{}, failures: map[string]error{}}
}

func requestKey(endpoint string, params map[string]string) string {
	if offset, ok := params["offset"]; ok {
		return endpoint + "?offset=" + offset
	}
	return endpoint
}

func (f *fakeFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	key := requestKey(endpoint, params)
	f.calls = append(f.calls, key)
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	body, ok := f.responses[key]
	if !ok {
		return nil, &models.FetchError{Endpoint: endpoint, Attempts: 3, StatusCode: 404, Err: fmt.Errorf("not found")}
	}
	return []byte(body), nil
}

// searchPage renders a page of items with the given ids and title prefix
func searchPage(titlePrefix string, ids ...string) string {
	items := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]interface{}{"id": id, "title": titlePrefix + id})
	}
	data, _ := json.Marshal(map[string]interface{}{"items": items})
	return string(data)
}

func detailBody(title string) string {
	data, _ := json.Marshal(map[string]interface{}{"title": title, "nested": map[string]interface{}{"a": 1}})
	return string(data)
}
