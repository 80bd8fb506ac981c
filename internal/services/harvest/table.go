package harvest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ternarybob/harvester/internal/models"
)

// Table is a CSV file of rows keyed by a key column.
// After any Merge no two rows share a key; the file is rewritten wholesale.
type Table struct {
	path      string
	keyColumn string
}

// MergeResult summarises a Merge call
type MergeResult struct {
	Existing   int // rows present before the merge
	Added      int // new rows that made it into the table
	Duplicates int // new rows dropped because their key was already present
	Total      int // rows in the table after the merge
	Written    bool
}

// NewTable returns a table at path. keyColumn may be empty for unkeyed tables.
func NewTable(path string, keyColumn string) *Table {
	return &Table{path: path, keyColumn: keyColumn}
}

// Path returns the file location
func (t *Table) Path() string {
	return t.path
}

// Exists reports whether the table file is present
func (t *Table) Exists() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

// Load reads all rows and the header. A missing file yields no rows and no error.
// Rows with an empty key cell are returned with an empty Key.
func (t *Table) Load() ([]models.Row, []string, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open table %s: %w", t.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table header %s: %w", t.path, err)
	}

	keyIndex := -1
	for i, name := range header {
		if name == t.keyColumn {
			keyIndex = i
		}
	}
	if t.keyColumn != "" && keyIndex < 0 {
		return nil, nil, fmt.Errorf("table %s has no %q column", t.path, t.keyColumn)
	}

	var rows []models.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read table %s: %w", t.path, err)
		}

		row := models.Row{Values: make(map[string]string, len(header))}
		for i, name := range header {
			if i < len(record) {
				row.Values[name] = record[i]
			}
		}
		if keyIndex >= 0 && keyIndex < len(record) {
			row.Key = record[keyIndex]
		}
		rows = append(rows, row)
	}

	return rows, header, nil
}

// Keys returns the resume set: every key currently in the table
func (t *Table) Keys() (models.KeySet, error) {
	rows, _, err := t.Load()
	if err != nil {
		return nil, err
	}
	keys := make(models.KeySet, len(rows))
	for _, row := range rows {
		if row.Key != "" {
			keys.Add(row.Key)
		}
	}
	return keys, nil
}

// Merge appends rows to the table and drops duplicate keys keeping the first
// occurrence, so rows already in the table win over new ones.
// When rows is empty the file is left untouched.
func (t *Table) Merge(rows []models.Row, columns []string) (MergeResult, error) {
	existing, header, err := t.Load()
	if err != nil {
		return MergeResult{}, err
	}

	result := MergeResult{Existing: len(existing), Total: len(existing)}
	if len(rows) == 0 {
		return result, nil
	}

	existing = DedupeRows(existing)
	combined := make([]models.Row, 0, len(existing)+len(rows))
	combined = append(combined, existing...)
	combined = append(combined, rows...)
	merged := DedupeRows(combined)

	result.Total = len(merged)
	result.Added = len(merged) - len(existing)
	result.Duplicates = len(rows) - result.Added

	if err := t.Write(merged, MergeColumns(header, columns)); err != nil {
		return result, err
	}
	result.Written = true

	return result, nil
}

// Write replaces the table with rows using columns as the header.
// The file is written to a temp file and renamed into place.
func (t *Table) Write(rows []models.Row, columns []string) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp table: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(columns); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, name := range columns {
			if name == t.keyColumn && t.keyColumn != "" {
				record[i] = row.Key
				continue
			}
			record[i] = row.Get(name)
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write table row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp table: %w", err)
	}

	if err := os.Rename(tmpName, t.path); err != nil {
		return fmt.Errorf("failed to replace table %s: %w", t.path, err)
	}
	return nil
}

// DedupeRows drops rows whose key was already seen, keeping the first occurrence.
// Rows with an empty key are kept as-is.
func DedupeRows(rows []models.Row) []models.Row {
	seen := make(models.KeySet, len(rows))
	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if row.Key != "" {
			if seen.Has(row.Key) {
				continue
			}
			seen.Add(row.Key)
		}
		out = append(out, row)
	}
	return out
}

// MergeColumns keeps the existing header order and appends columns it lacks
func MergeColumns(existing []string, columns []string) []string {
	if len(existing) == 0 {
		return append([]string(nil), columns...)
	}
	out := append([]string(nil), existing...)
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}
	for _, name := range columns {
		if !present[name] {
			out = append(out, name)
			present[name] = true
		}
	}
	return out
}

// RecordsToRows renders skeleton records as table rows
func RecordsToRows(records []models.Record) []models.Row {
	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		values := make(map[string]string, len(rec.Fields))
		for name, v := range rec.Fields {
			values[name] = models.FormatScalar(v)
		}
		rows = append(rows, models.Row{Key: rec.Key, Values: values})
	}
	return rows
}
