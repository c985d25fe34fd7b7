package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reachlab/creator-scout/internal/pipeline"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url-or-id>...",
	Short: "Scrape specific videos",
	Long:  "Scrapes the given watch URLs, bare video ids, or search-results URLs. When a YouTube API key is configured, missing fields are filled from the API.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch, err := buildOrchestrator()
		if err != nil {
			return err
		}

		maxResults, _ := cmd.Flags().GetInt("max-results")

		scraper := pipeline.NewScraper(pipeline.ScraperConfig{
			Inputs:     args,
			MaxResults: maxResults,
			ResultsDir: cfg.Output.ResultsDir,
		}, buildAPIClient(), buildExtractor(), orch, st)

		summary, err := scraper.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Processed %d videos: %d saved, %d skipped. Results in %s/\n",
			summary.Processed, summary.Succeeded, summary.Skipped, cfg.Output.ResultsDir)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().Int("max-results", 50, "maximum videos pulled from a search-results URL")

	rootCmd.AddCommand(scrapeCmd)
}
