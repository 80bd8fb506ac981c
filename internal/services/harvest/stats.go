package harvest

import (
	"sort"

	"github.com/ternarybob/harvester/internal/models"
)

// ValueCount is a value and how many rows carry it
type ValueCount struct {
	Value string
	Count int
}

// TopValues counts non-empty values of column and returns the n most common,
// ties broken by value
func TopValues(rows []models.Row, column string, n int) []ValueCount {
	counts := make(map[string]int)
	for _, row := range rows {
		if v := row.Get(column); v != "" {
			counts[v]++
		}
	}

	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
