package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the MusicBrainz search and resumable detail harvest once",
	Long: `Collects the configured number of recording search pages, writes the search
skeleton table and then fetches details only for recordings not yet in the
details table. Re-running after an interruption resumes where it stopped.`,
	RunE: runMusicBrainz,
}

var (
	runQuery string
	runPages int
)

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "Search query (overrides config)")
	runCmd.Flags().IntVar(&runPages, "pages", 0, "Number of search pages (overrides config)")
}

func runMusicBrainz(cmd *cobra.Command, args []string) error {
	query := application.MusicBrainzQuery()
	if runQuery != "" {
		query.Text = runQuery
	}
	if runPages > 0 {
		query.Pages = runPages
	}

	result, err := application.MusicBrainzPipeline().Run(cmd.Context(), query)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d records collected, %d details fetched, %d already done, %d rows in %s\n",
		result.RunID,
		len(result.Records),
		result.Sync.Fetched,
		result.Sync.AlreadyDone,
		result.Sync.Merge.Total,
		config.OutputPath(config.MusicBrainz.DetailsTable),
	)
	return nil
}
