package interfaces

import (
	"github.com/ternarybob/harvester/internal/models"
)

// SearchSource describes a paginated search endpoint and how to normalize its items
type SearchSource interface {
	// Name identifies the source in logs
	Name() string

	// SearchRequest returns the endpoint and query parameters for one page
	SearchRequest(query string, offset, limit int) (string, map[string]string)

	// DecodeSearch extracts the raw item list from a search response body
	DecodeSearch(body []byte) ([]map[string]interface{}, error)

	// NormalizeItem converts a raw item into a Record; ok is false when no key can be resolved
	NormalizeItem(item map[string]interface{}) (models.Record, bool)

	// SkeletonColumns lists the skeleton table columns, key column first
	SkeletonColumns() []string
}

// DetailSource describes a per-key detail endpoint and how to flatten its payload
type DetailSource interface {
	// DetailRequest returns the endpoint and query parameters for one key
	DetailRequest(key string) (string, map[string]string)

	// FlattenDetail derives a table row from a raw payload.
	// Missing optional fields yield empty values; only a missing key is an error.
	FlattenDetail(payload models.DetailPayload) (models.Row, error)

	// KeyColumn is the table column holding the entity key
	KeyColumn() string

	// DetailColumns lists the detail table columns, key column first
	DetailColumns() []string

	// ArtifactName returns the file name used for the raw payload of key
	ArtifactName(key string) string
}
