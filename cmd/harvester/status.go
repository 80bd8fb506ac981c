package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ternarybob/harvester/internal/services/scheduler"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted scheduler metrics and recent job history",
	RunE:  runStatus,
}

var statusLimit int

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of history entries to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	store := scheduler.NewMetricsStore(
		config.OutputPath(config.Scheduler.MetricsFile),
		config.Scheduler.HistoryCap,
		logger,
	)
	metrics, err := store.Load()
	if err != nil {
		return err
	}

	last := "never"
	if metrics.LastExecution != nil {
		last = metrics.LastExecution.Format(time.RFC3339)
	}
	fmt.Printf("Jobs: %d total, %d successful, %d failed (success rate %s), last execution %s\n",
		metrics.TotalJobs, metrics.SuccessfulJobs, metrics.FailedJobs, metrics.SuccessRate, last)

	history := metrics.JobHistory
	if statusLimit > 0 && len(history) > statusLimit {
		history = history[len(history)-statusLimit:]
	}
	if len(history) == 0 {
		return nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"Time", "Job", "Run", "Status", "Error"})
	for _, entry := range history {
		t.AppendRow(table.Row{entry.Timestamp.Format(time.RFC3339), entry.JobID, entry.RunID, entry.Status, entry.Error})
	}
	t.Render()
	return nil
}
