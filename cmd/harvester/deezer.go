package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deezerCmd = &cobra.Command{
	Use:   "deezer",
	Short: "Extract the embedded application state from a Deezer page",
	Long: `Fetches the configured Deezer page with browser headers and optional
session cookies (DEEZER_COOKIE or DEEZER_SID) and saves the embedded
application state as JSON. On failure the page is kept for inspection.`,
	RunE: runDeezer,
}

var deezerPage string

func init() {
	deezerCmd.Flags().StringVar(&deezerPage, "page", "", "Page URL (overrides config)")
}

func runDeezer(cmd *cobra.Command, args []string) error {
	if deezerPage != "" {
		config.Deezer.TargetPage = deezerPage
	}

	result, err := application.RunDeezer(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Saved %s (top-level keys: %s)\n", result.Path, strings.Join(result.Keys, ", "))
	return nil
}
