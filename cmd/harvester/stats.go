package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ternarybob/harvester/internal/services/harvest"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the most frequent values of a column in a harvested table",
	RunE:  runStats,
}

var (
	statsSource string
	statsColumn string
	statsTop    int
)

func init() {
	statsCmd.Flags().StringVarP(&statsSource, "source", "s", "musicbrainz", "Table to read (musicbrainz, quotes)")
	statsCmd.Flags().StringVar(&statsColumn, "column", "artist", "Column to count")
	statsCmd.Flags().IntVarP(&statsTop, "top", "n", 10, "Number of values to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	tbl, err := application.SourceTable(statsSource)
	if err != nil {
		return err
	}

	rows, columns, err := tbl.Load()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No rows in %s\n", tbl.Path())
		return nil
	}

	found := false
	for _, c := range columns {
		if c == statsColumn {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("column %q not in %s (columns: %v)", statsColumn, tbl.Path(), columns)
	}

	t := newTable()
	t.SetTitle(fmt.Sprintf("Top %s values (%d rows)", statsColumn, len(rows)))
	t.AppendHeader(table.Row{"#", statsColumn, "Count"})
	for i, vc := range harvest.TopValues(rows, statsColumn, statsTop) {
		t.AppendRow(table.Row{i + 1, vc.Value, vc.Count})
	}
	t.Render()
	return nil
}
