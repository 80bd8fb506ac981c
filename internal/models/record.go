// -----------------------------------------------------------------------
// Harvest records - skeleton records, detail payloads and flattened rows
// -----------------------------------------------------------------------

package models

// Record is a skeleton entry produced from a search/list page.
// Records are immutable once produced; Fields holds scalar values only.
type Record struct {
	Key    string                 `json:"key"`
	Fields map[string]interface{} `json:"fields"`
}

// DetailPayload is the raw nested document fetched for one key.
// It is persisted verbatim as an audit artifact.
type DetailPayload struct {
	Key string                 `json:"key"`
	Raw map[string]interface{} `json:"raw"`
}

// Row is a flattened, table-ready representation of an entity.
// Values are already rendered as strings; an empty string represents null.
type Row struct {
	Key    string
	Values map[string]string
}

// Get returns the value of column name, or "" when absent
func (r Row) Get(name string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[name]
}

// KeySet is a set of entity keys
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from keys
func NewKeySet(keys ...string) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether key is present
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add inserts key into the set
func (s KeySet) Add(key string) {
	s[key] = struct{}{}
}

// RecordKeys returns the keys of records in their original order
func RecordKeys(records []Record) []string {
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	return keys
}
