package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/internal/proxy"
	"github.com/reachlab/creator-scout/pkg/youtube"
)

// fakeVideoPages is a canned VideoExtractor keyed by video id.
type fakeVideoPages struct {
	videos    map[string]model.VideoExtraction
	searchIDs []string
}

func (f *fakeVideoPages) Video(_ context.Context, _ *proxy.Endpoint, videoID string) (*model.VideoExtraction, error) {
	if v, ok := f.videos[videoID]; ok {
		cp := v
		return &cp, nil
	}
	return nil, errors.New("watch page unavailable")
}

func (f *fakeVideoPages) SearchVideoIDs(_ context.Context, _ *proxy.Endpoint, _ string, limit int) ([]string, error) {
	if len(f.searchIDs) > limit {
		return f.searchIDs[:limit], nil
	}
	return f.searchIDs, nil
}

func newTestScraper(cfg ScraperConfig, api youtube.Client, pages VideoExtractor) (*Scraper, *fakeStore) {
	st := newFakeStore()
	orch := NewOrchestrator(proxy.NewPool(nil), 3)
	return NewScraper(cfg, api, pages, orch, st), st
}

func TestScraper_ResolveInputs(t *testing.T) {
	pages := &fakeVideoPages{searchIDs: []string{"searchvid01", "abcdefghijk"}}
	s, _ := newTestScraper(ScraperConfig{
		Inputs: []string{
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			"abcdefghijk",
			"https://www.youtube.com/shorts/shortvid001",
			"https://www.youtube.com/results?search_query=street+food",
			"not a video",
		},
		ResultsDir: t.TempDir(),
	}, nil, pages)

	ids, err := s.resolveInputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dQw4w9WgXcQ", "abcdefghijk", "shortvid001", "searchvid01"}, ids)
}

func TestScraper_RunScrapeOnly(t *testing.T) {
	dir := t.TempDir()
	pages := &fakeVideoPages{
		videos: map[string]model.VideoExtraction{
			"dQw4w9WgXcQ": {
				VideoID:   "dQw4w9WgXcQ",
				Title:     "Street Eats Ep 1",
				LikeCount: 1200,
				ChannelID: "UCstreet",
			},
		},
	}
	s, st := newTestScraper(ScraperConfig{
		Inputs:     []string{"https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		ResultsDir: dir,
	}, nil, pages)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunSummary{Processed: 1, Succeeded: 1}, summary)
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, st.exported)

	var records []model.VideoRecord
	data, err := os.ReadFile(filepath.Join(dir, "20240115_103000_scrape_videos.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "scrape", records[0].ExtractionPath)
	assert.Equal(t, model.Count{Value: 1200, Source: model.SourceScraped}, records[0].LikeCount)
	assert.Equal(t, model.Count{}, records[0].ViewCount)
}

func TestScraper_RunWithAPIEnrichment(t *testing.T) {
	dir := t.TempDir()
	pages := &fakeVideoPages{
		videos: map[string]model.VideoExtraction{
			"dQw4w9WgXcQ": {
				VideoID:   "dQw4w9WgXcQ",
				Title:     "Street Eats Ep 1",
				ChannelID: "UCstreet",
			},
		},
	}
	api := &fakeAPI{
		videos: map[string]youtube.Video{
			"dQw4w9WgXcQ": {
				ID:         "dQw4w9WgXcQ",
				Snippet:    youtube.VideoSnippet{PublishedAt: "2024-01-10T00:00:00Z"},
				Statistics: youtube.VideoStatistics{ViewCount: "34567"},
			},
		},
		channels: map[string]youtube.Channel{
			"UCstreet": {
				ID:         "UCstreet",
				Statistics: youtube.ChannelStatistics{SubscriberCount: "88000"},
			},
		},
	}
	s, _ := newTestScraper(ScraperConfig{
		Inputs:     []string{"dQw4w9WgXcQ"},
		ResultsDir: dir,
	}, api, pages)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunSummary{Processed: 1, Succeeded: 1}, summary)

	var records []model.VideoRecord
	data, err := os.ReadFile(filepath.Join(dir, "20240115_103000_scrape_videos.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "api+scrape", rec.ExtractionPath)
	assert.Equal(t, "Street Eats Ep 1", rec.Title)
	assert.Equal(t, "2024-01-10T00:00:00Z", rec.UploadDate)
	assert.Equal(t, model.Count{Value: 34567, Source: model.SourceAPI}, rec.ViewCount)
	assert.Equal(t, model.Count{Value: 88000, Source: model.SourceAPI}, rec.ChannelSubscribers)
}

func TestScraper_FailureRecorded(t *testing.T) {
	dir := t.TempDir()
	s, st := newTestScraper(ScraperConfig{
		Inputs:     []string{"missingvid1"},
		ResultsDir: dir,
	}, nil, &fakeVideoPages{})

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunSummary{Processed: 1, Skipped: 1}, summary)
	require.Len(t, st.failures["run-1"], 1)
	assert.Equal(t, model.FailureRecord{
		ID: "missingvid1", Reason: model.FailureReasonRetries, Attempts: 3,
	}, st.failures["run-1"][0])

	data, err := os.ReadFile(filepath.Join(dir, "20240115_103000_scrape_failed.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "missingvid1,skipped_after_retries,3")
}

// cancelVideoDuringSecond serves the first watch page normally, then
// cancels the run from inside the second video's attempt.
type cancelVideoDuringSecond struct {
	inner  *fakeVideoPages
	calls  int
	cancel context.CancelFunc
}

func (c *cancelVideoDuringSecond) Video(ctx context.Context, ep *proxy.Endpoint, videoID string) (*model.VideoExtraction, error) {
	c.calls++
	if c.calls > 1 {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.inner.Video(ctx, ep, videoID)
}

func (c *cancelVideoDuringSecond) SearchVideoIDs(ctx context.Context, ep *proxy.Endpoint, searchURL string, limit int) ([]string, error) {
	return c.inner.SearchVideoIDs(ctx, ep, searchURL, limit)
}

func TestScraper_InterruptMidAttemptUncountsItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pages := &fakeVideoPages{
		videos: map[string]model.VideoExtraction{
			"dQw4w9WgXcQ": {VideoID: "dQw4w9WgXcQ", Title: "Street Eats Ep 1"},
			"abcdefghijk": {VideoID: "abcdefghijk", Title: "Street Eats Ep 2"},
		},
	}
	wrapped := &cancelVideoDuringSecond{inner: pages, cancel: cancel}
	s, st := newTestScraper(ScraperConfig{
		Inputs:     []string{"dQw4w9WgXcQ", "abcdefghijk"},
		ResultsDir: t.TempDir(),
	}, nil, wrapped)

	summary, err := s.Run(ctx)
	require.NoError(t, err)

	// The aborted second video lands in no bucket; the summary still
	// adds up and the video is picked up again next run.
	assert.Equal(t, model.RunSummary{Processed: 1, Succeeded: 1}, summary)
	run, getErr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusInterrupted, run.Status)
}

func TestScraper_DedupAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	pages := &fakeVideoPages{
		videos: map[string]model.VideoExtraction{
			"dQw4w9WgXcQ": {VideoID: "dQw4w9WgXcQ", Title: "Street Eats Ep 1"},
		},
	}

	s, _ := newTestScraper(ScraperConfig{
		Inputs:     []string{"dQw4w9WgXcQ"},
		ResultsDir: dir,
	}, nil, pages)
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	// A later run in the same results dir sees the snapshot and skips.
	s2, _ := newTestScraper(ScraperConfig{
		Inputs:     []string{"dQw4w9WgXcQ"},
		ResultsDir: dir,
	}, nil, pages)
	summary, err = s2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunSummary{Skipped: 1}, summary)
}
