package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore persists raw payloads, one human-readable JSON file per key
type ArtifactStore struct {
	dir string
}

// NewArtifactStore returns a store rooted at dir
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Dir returns the artifact directory
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Save writes v as indented JSON to name inside the store, overwriting any previous file
func (s *ArtifactStore) Save(name string, v interface{}) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode artifact %s: %w", name, err)
	}

	path := filepath.Join(s.dir, SafeFileName(name))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return path, nil
}

// SafeFileName escapes name into a single path segment. Separators and
// other characters unsafe in file names are percent-encoded, so distinct
// names always map to distinct files.
func SafeFileName(name string) string {
	switch name {
	case "":
		return "_"
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return strings.ReplaceAll(url.PathEscape(name), ":", "%3A")
}
