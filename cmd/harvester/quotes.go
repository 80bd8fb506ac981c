package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/harvester/internal/app"
)

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Scrape quotes.toscrape.com into a deduplicated table",
	Long: `Scrapes the paginated static quote listing, or with --rendered the
JavaScript-delayed page through a headless browser. Quotes are merged by
text so repeated runs only add new quotes.`,
	RunE: runQuotes,
}

var quotesRendered bool

func init() {
	quotesCmd.Flags().BoolVar(&quotesRendered, "rendered", false, "Render the JavaScript page in a headless browser")
}

func runQuotes(cmd *cobra.Command, args []string) error {
	result, err := application.RunQuotes(cmd.Context(), quotesRendered)
	if err != nil {
		return err
	}

	name := app.QuotesStaticTable
	if quotesRendered {
		name = app.QuotesRenderedTable
	}
	fmt.Printf("%d new quotes, %d total in %s\n", result.Added, result.Total, config.OutputPath(name))
	return nil
}
