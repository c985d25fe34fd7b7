package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reachlab/creator-scout/internal/extract"
	"github.com/reachlab/creator-scout/internal/location"
	"github.com/reachlab/creator-scout/internal/pipeline"
	"github.com/reachlab/creator-scout/internal/proxy"
	"github.com/reachlab/creator-scout/pkg/youtube"
)

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Discover creators for a niche",
	Long:  "Searches YouTube for channels matching the query, scrapes and enriches each one, and writes ranked results to the results directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}
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
		engine, err := location.NewEngine()
		if err != nil {
			return err
		}

		targetLocation, _ := cmd.Flags().GetString("location")
		maxResults, _ := cmd.Flags().GetInt("max-results")
		minSubscribers, _ := cmd.Flags().GetInt64("min-subscribers")
		regionCode, _ := cmd.Flags().GetString("region")

		if maxResults <= 0 {
			maxResults = cfg.Find.MaxResults
		}
		if minSubscribers < 0 {
			minSubscribers = cfg.Find.MinSubscribers
		}
		if regionCode == "" {
			regionCode = cfg.Find.RegionCode
		}

		finder := pipeline.NewFinder(pipeline.FinderConfig{
			Query:          args[0],
			TargetLocation: targetLocation,
			MaxResults:     maxResults,
			RegionCode:     regionCode,
			MinSubscribers: minSubscribers,
			SampleVideos:   cfg.Find.SampleVideos,
			ResultsDir:     cfg.Output.ResultsDir,
		}, buildAPIClient(), buildExtractor(), orch, engine, st)

		summary, err := finder.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Processed %d channels: %d saved, %d skipped. Results in %s/\n",
			summary.Processed, summary.Succeeded, summary.Skipped, cfg.Output.ResultsDir)
		return nil
	},
}

func init() {
	findCmd.Flags().String("location", "", "target location hint (city, country, or 2-letter code)")
	findCmd.Flags().Int("max-results", 0, "maximum channels to save (default from config)")
	findCmd.Flags().Int64("min-subscribers", -1, "drop channels below this subscriber count")
	findCmd.Flags().String("region", "", "YouTube API region code, e.g. US")

	rootCmd.AddCommand(findCmd)
}

// buildOrchestrator assembles the proxy pool and retry orchestrator from
// config. An empty pool means direct connections.
func buildOrchestrator() (*pipeline.Orchestrator, error) {
	var endpoints []proxy.Endpoint
	if cfg.Proxy.File != "" {
		eps, err := proxy.LoadFile(cfg.Proxy.File)
		if err != nil {
			return nil, err
		}
		endpoints = eps
	}
	pool := proxy.NewPool(endpoints,
		proxy.WithRotationInterval(cfg.Proxy.RotationInterval),
		proxy.WithBlacklistThreshold(cfg.Proxy.BlacklistThreshold))
	return pipeline.NewOrchestrator(pool, cfg.Scrape.MaxAttempts), nil
}

func buildExtractor() *extract.Extractor {
	opts := []extract.Option{
		extract.WithTimeout(time.Duration(cfg.Scrape.TimeoutSecs) * time.Second),
		extract.WithRateLimit(cfg.Scrape.RateLimit),
	}
	if cfg.Scrape.UserAgent != "" {
		opts = append(opts, extract.WithUserAgent(cfg.Scrape.UserAgent))
	}
	return extract.New(opts...)
}

// buildAPIClient returns nil when no API key is configured; the scrape
// flow degrades to scrape-only in that case.
func buildAPIClient() youtube.Client {
	if cfg.YouTube.APIKey == "" {
		return nil
	}
	return youtube.NewClient(cfg.YouTube.APIKey,
		youtube.WithBaseURL(cfg.YouTube.BaseURL),
		youtube.WithRateLimit(cfg.YouTube.RateLimit))
}
