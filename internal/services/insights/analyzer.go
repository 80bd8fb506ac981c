package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
)

const systemPrompt = "You are a data analyst expert."

// ColumnStats summarises a numeric column
type ColumnStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
}

// Summary is the compact view of a table sent to the model
type Summary struct {
	TotalRecords int                    `json:"total_records"`
	Columns      []string               `json:"columns"`
	SampleData   []map[string]string    `json:"sample_data"`
	Statistics   map[string]ColumnStats `json:"statistics"`
}

// Insights is the structured analysis returned by the model
type Insights struct {
	Source          string    `json:"source"`
	Provider        string    `json:"provider"`
	GeneratedAt     time.Time `json:"generated_at"`
	Trends          []string  `json:"trends"`
	Anomalies       []string  `json:"anomalies"`
	Predictions     []string  `json:"predictions"`
	Recommendations []string  `json:"recommendations"`
}

// Analyzer asks an LLM for trends in a harvested table
type Analyzer struct {
	provider   interfaces.LLMProvider
	maxSamples int
	logger     arbor.ILogger
}

// NewAnalyzer creates an analyzer. maxSamples bounds the rows included in the prompt.
func NewAnalyzer(provider interfaces.LLMProvider, maxSamples int, logger arbor.ILogger) *Analyzer {
	if maxSamples <= 0 {
		maxSamples = 20
	}
	return &Analyzer{
		provider:   provider,
		maxSamples: maxSamples,
		logger:     logger,
	}
}

// Analyze summarises rows, prompts the model and decodes its JSON answer
func (a *Analyzer) Analyze(ctx context.Context, source string, rows []models.Row, columns []string) (*Insights, error) {
	if a.provider == nil {
		return nil, models.ErrAnalyzerDisabled
	}

	summary := Summarize(rows, columns, a.maxSamples)
	prompt, err := BuildPrompt(summary)
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("source", source).
		Str("provider", a.provider.Name()).
		Int("records", summary.TotalRecords).
		Int("samples", len(summary.SampleData)).
		Msg("Requesting LLM insights")

	text, err := a.provider.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	insights, err := ParseInsights(text)
	if err != nil {
		return nil, err
	}
	insights.Source = source
	insights.Provider = a.provider.Name()
	insights.GeneratedAt = time.Now().UTC()

	a.logger.Info().
		Str("source", source).
		Int("trends", len(insights.Trends)).
		Int("recommendations", len(insights.Recommendations)).
		Msg("LLM insights generated")

	return insights, nil
}

// Summarize builds the record count, column list, first maxSamples rows and
// mean/median/std for every column whose non-empty values are all numeric
func Summarize(rows []models.Row, columns []string, maxSamples int) Summary {
	summary := Summary{
		TotalRecords: len(rows),
		Columns:      append([]string{}, columns...),
		SampleData:   []map[string]string{},
		Statistics:   map[string]ColumnStats{},
	}

	for i, row := range rows {
		if i >= maxSamples {
			break
		}
		sample := make(map[string]string, len(columns))
		for _, name := range columns {
			sample[name] = row.Get(name)
		}
		summary.SampleData = append(summary.SampleData, sample)
	}

	for _, name := range columns {
		if values, ok := numericValues(rows, name); ok {
			summary.Statistics[name] = computeStats(values)
		}
	}

	return summary
}

func numericValues(rows []models.Row, column string) ([]float64, bool) {
	var values []float64
	for _, row := range rows {
		raw := strings.TrimSpace(row.Get(column))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	return values, len(values) > 0
}

// computeStats uses the sample standard deviation (n-1); a single value has std 0
func computeStats(values []float64) ColumnStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var std float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return ColumnStats{Mean: mean, Median: median, Std: std}
}

// BuildPrompt renders the trend analysis prompt around the JSON summary
func BuildPrompt(summary Summary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode data summary: %w", err)
	}

	return fmt.Sprintf(`You are a data analyst specializing in trend identification and insight generation.

Analyze this scraped data and provide:
1. **Key Trends**: What patterns do you observe?
2. **Anomalies**: Any unusual or surprising data points?
3. **Predictions**: Based on this data, what might happen next?
4. **Recommendations**: Actions to take based on these insights

Data Summary:
%s

Format your response as JSON with keys: trends, anomalies, predictions, recommendations
Each key maps to a list of short strings.`, data), nil
}

// ExtractJSON strips a markdown code fence around the model output when present
func ExtractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}

// ParseInsights decodes the model answer. Each section may be a list of
// strings or of objects; objects are rendered as compact JSON.
func ParseInsights(text string) (*Insights, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &raw); err != nil {
		return nil, &models.ParseError{Field: "insights", Reason: fmt.Sprintf("model did not return JSON: %v", err)}
	}

	return &Insights{
		Trends:          stringList(raw["trends"]),
		Anomalies:       stringList(raw["anomalies"]),
		Predictions:     stringList(raw["predictions"]),
		Recommendations: stringList(raw["recommendations"]),
	}, nil
}

func stringList(v interface{}) []string {
	out := []string{}
	switch val := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	case []interface{}:
		for _, item := range val {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case nil:
			default:
				if data, err := json.Marshal(it); err == nil {
					out = append(out, string(data))
				}
			}
		}
	default:
		out = append(out, models.FormatScalar(val))
	}
	return out
}
