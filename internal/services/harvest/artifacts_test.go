package harvest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStore_SaveOverwrites(t *testing.T) {
	store := NewArtifactStore(filepath.Join(t.TempDir(), "details_json"))

	path, err := store.Save("recording_a.json", map[string]interface{}{"title": "<first>"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "recording_a.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"<first>\"")
	assert.Contains(t, string(data), "\n  \"title\"")

	_, err = store.Save("recording_a.json", map[string]interface{}{"title": "second"})
	require.NoError(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "second", decoded["title"])
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"recording_a.json", "recording_a.json"},
		{"a/b\\c.json", "a%2Fb%5Cc.json"},
		{"a:b*?.json", "a%3Ab%2A%3F.json"},
		{"with space", "with%20space"},
		{"..", "%2E%2E"},
		{"", "_"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFileName(tt.name))
		})
	}
}

func TestSafeFileName_DistinctNamesDoNotCollide(t *testing.T) {
	assert.NotEqual(t, SafeFileName("a/b"), SafeFileName("a_b"))
	assert.NotEqual(t, SafeFileName("a%2Fb"), SafeFileName("a/b"))
}

func TestArtifactStore_KeysWithSeparatorsKeepSeparateFiles(t *testing.T) {
	store := NewArtifactStore(t.TempDir())

	slashPath, err := store.Save("a/b", map[string]string{"key": "a/b"})
	require.NoError(t, err)
	underscorePath, err := store.Save("a_b", map[string]string{"key": "a_b"})
	require.NoError(t, err)
	assert.NotEqual(t, slashPath, underscorePath)

	data, err := os.ReadFile(slashPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key": "a/b"`)
}
