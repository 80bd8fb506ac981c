package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/harvester/internal/app"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate LLM insights for a harvested table",
	Long: `Summarises a harvested table and asks the configured LLM provider
(Claude or Gemini) for trends, anomalies, predictions and recommendations.
The report is written as JSON, Markdown and HTML.`,
	RunE: runInsights,
}

var (
	insightsSource string
	insightsEmail  bool
)

func init() {
	insightsCmd.Flags().StringVarP(&insightsSource, "source", "s", app.PipelineMusicBrainz, "Table to analyse (musicbrainz, quotes)")
	insightsCmd.Flags().BoolVar(&insightsEmail, "email", false, "Email the report to the alert recipients")
}

func runInsights(cmd *cobra.Command, args []string) error {
	report, err := application.RunInsights(cmd.Context(), insightsSource, insightsEmail)
	if err != nil {
		return err
	}

	fmt.Println(report.Markdown)
	fmt.Printf("Report written to %s, %s and %s\n", report.JSONPath, report.MarkdownPath, report.HTMLPath)
	return nil
}
