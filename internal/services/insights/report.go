package insights

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/ternarybob/harvester/internal/services/harvest"
)

// Report lists the files written for one analysis
type Report struct {
	JSONPath     string
	MarkdownPath string
	HTMLPath     string
	Markdown     string
	HTML         string
}

// RenderMarkdown formats insights as a markdown document
func RenderMarkdown(ins *Insights) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Insights: %s\n\n", ins.Source)
	fmt.Fprintf(&b, "_Generated %s by %s_\n", ins.GeneratedAt.Format("2006-01-02 15:04 MST"), ins.Provider)

	sections := []struct {
		title string
		items []string
	}{
		{"Key Trends", ins.Trends},
		{"Anomalies", ins.Anomalies},
		{"Predictions", ins.Predictions},
		{"Recommendations", ins.Recommendations},
	}
	for _, section := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n", section.title)
		if len(section.items) == 0 {
			b.WriteString("_None reported._\n")
			continue
		}
		for i, item := range section.items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
	}
	return b.String()
}

// RenderHTML converts markdown to an HTML page
func RenderHTML(title string, markdown string) (string, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s</body>
</html>
`, title, body.String()), nil
}

// WriteReport saves insights as <name>.json, <name>.md and <name>.html in dir
func WriteReport(dir string, name string, ins *Insights) (*Report, error) {
	jsonPath, err := harvest.NewArtifactStore(dir).Save(name+".json", ins)
	if err != nil {
		return nil, err
	}

	markdown := RenderMarkdown(ins)
	html, err := RenderHTML("Insights: "+ins.Source, markdown)
	if err != nil {
		return nil, err
	}

	report := &Report{
		JSONPath:     jsonPath,
		MarkdownPath: filepath.Join(dir, name+".md"),
		HTMLPath:     filepath.Join(dir, name+".html"),
		Markdown:     markdown,
		HTML:         html,
	}
	if err := os.WriteFile(report.MarkdownPath, []byte(markdown), 0644); err != nil {
		return nil, fmt.Errorf("failed to write markdown report: %w", err)
	}
	if err := os.WriteFile(report.HTMLPath, []byte(html), 0644); err != nil {
		return nil, fmt.Errorf("failed to write html report: %w", err)
	}
	return report, nil
}
