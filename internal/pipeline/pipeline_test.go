package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachlab/creator-scout/internal/location"
	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/internal/proxy"
	"github.com/reachlab/creator-scout/internal/store"
	"github.com/reachlab/creator-scout/pkg/youtube"
)

// fakeStore is an in-memory store.Store for pipeline tests.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	runs     map[string]*model.Run
	failures map[string][]model.FailureRecord
	exported []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:     make(map[string]*model.Run),
		failures: make(map[string][]model.FailureRecord),
	}
}

func (s *fakeStore) CreateRun(_ context.Context, kind model.RunKind, query, target string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	run := &model.Run{
		ID:             fmt.Sprintf("run-%d", s.seq),
		Kind:           kind,
		Query:          query,
		TargetLocation: target,
		Status:         model.RunStatusRunning,
		CreatedAt:      time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *fakeStore) CompleteRun(_ context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	run.Status = status
	run.Summary = summary
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, errors.New("run not found")
	}
	return run, nil
}

func (s *fakeStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Run
	for _, run := range s.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (s *fakeStore) RecordFailure(_ context.Context, runID string, failure model.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[runID] = append(s.failures[runID], failure)
	return nil
}

func (s *fakeStore) ListFailures(_ context.Context, runID string) ([]model.FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[runID], nil
}

func (s *fakeStore) MarkExported(_ context.Context, _ string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = append(s.exported, ids...)
	return nil
}

func (s *fakeStore) ExportedIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.exported...), nil
}

func (s *fakeStore) Migrate(context.Context) error { return nil }
func (s *fakeStore) Close() error                  { return nil }

// fakeAPI is a canned youtube.Client.
type fakeAPI struct {
	items     []youtube.SearchItem
	channels  map[string]youtube.Channel
	videos    map[string]youtube.Video
	searchErr error
}

func (f *fakeAPI) SearchChannels(_ context.Context, _ string, _ int, _ string) ([]youtube.SearchItem, error) {
	return f.items, f.searchErr
}

func (f *fakeAPI) ChannelDetails(_ context.Context, ids []string) (map[string]youtube.Channel, error) {
	out := make(map[string]youtube.Channel)
	for _, id := range ids {
		if ch, ok := f.channels[id]; ok {
			out[id] = ch
		}
	}
	return out, nil
}

func (f *fakeAPI) VideoDetails(_ context.Context, ids []string) (map[string]youtube.Video, error) {
	out := make(map[string]youtube.Video)
	for _, id := range ids {
		if v, ok := f.videos[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// fakeChannelPages is a canned ChannelExtractor keyed by channel id.
type fakeChannelPages struct {
	about       map[string]model.ChannelExtraction
	samples     map[string][]model.SampleVideo
	failuresPer int // attempts that fail before each channel succeeds
	calls       int
}

func channelIDFromURL(channelURL string) string {
	return channelURL[strings.LastIndex(channelURL, "/")+1:]
}

func (f *fakeChannelPages) ChannelAbout(_ context.Context, _ *proxy.Endpoint, channelURL string) (*model.ChannelExtraction, error) {
	f.calls++
	if f.calls <= f.failuresPer {
		return nil, errors.New("connection reset")
	}
	if about, ok := f.about[channelIDFromURL(channelURL)]; ok {
		cp := about
		return &cp, nil
	}
	return nil, errors.New("page unavailable")
}

func (f *fakeChannelPages) ChannelVideos(_ context.Context, _ *proxy.Endpoint, channelURL string, _ int) ([]model.SampleVideo, error) {
	return f.samples[channelIDFromURL(channelURL)], nil
}

func channelItem(id string) youtube.SearchItem {
	return youtube.SearchItem{ID: youtube.SearchID{Kind: "youtube#channel", ChannelID: id}}
}

func newTestFinder(cfg FinderConfig, api youtube.Client, pages ChannelExtractor, st store.Store) *Finder {
	orch := NewOrchestrator(proxy.NewPool(nil), 3)
	return NewFinder(cfg, api, pages, orch, location.MustEngine(), st)
}

func TestFinder_DedupFuseAndPersist(t *testing.T) {
	dir := t.TempDir()
	prior := filepath.Join(dir, "20240101_000000_old_channels.csv")
	require.NoError(t, os.WriteFile(prior, []byte("channel_id,channel_name\nabc123,Old Channel\n"), 0o644))

	api := &fakeAPI{
		items: []youtube.SearchItem{
			channelItem("abc123"),
			channelItem("def456"),
			{
				ID:      youtube.SearchID{Kind: "youtube#video", VideoID: "vid00000001"},
				Snippet: youtube.SearchSnippet{ChannelID: "def456", Title: "Miami street food tour"},
			},
		},
		channels: map[string]youtube.Channel{
			"def456": {
				ID: "def456",
				Snippet: youtube.ChannelSnippet{
					Title:       "Dana Cooks",
					Description: "Cooking adventures",
				},
				Statistics: youtube.ChannelStatistics{
					SubscriberCount: "13000",
					VideoCount:      "120",
					ViewCount:       "5000000",
				},
			},
		},
	}
	pages := &fakeChannelPages{
		about: map[string]model.ChannelExtraction{
			"def456": {
				ChannelID:       "def456",
				ChannelURL:      "https://www.youtube.com/channel/def456",
				AboutText:       "Best food spots in Miami",
				Emails:          []string{"chef@danacooks.ca"},
				SubscriberCount: 12500,
			},
		},
		samples: map[string][]model.SampleVideo{
			"def456": {{VideoID: "vid00000001", Title: "Miami street food tour"}},
		},
	}
	st := newFakeStore()

	f := newTestFinder(FinderConfig{
		Query:          "cooking",
		TargetLocation: "Miami",
		MaxResults:     5,
		ResultsDir:     dir,
	}, api, pages, st)

	summary, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunSummary{Processed: 1, Succeeded: 1, Skipped: 1}, summary)
	assert.Equal(t, []string{"def456"}, st.exported)

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, summary, run.Summary)

	data, err := os.ReadFile(filepath.Join(dir, "20240115_103000_cooking_channels.csv"))
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	row := rows[1]
	assert.Equal(t, "def456", row[0])
	assert.Equal(t, "Dana Cooks", row[1])
	assert.Equal(t, "12500", row[4]) // scraped count wins over the API's 13000
	assert.Equal(t, "api+scrape", row[18])

	var records []model.CreatorRecord
	data, err = os.ReadFile(filepath.Join(dir, "20240115_103000_cooking_channels.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, model.SourceScraped, records[0].Subscribers.Source)
	assert.Equal(t, "Miami", records[0].Location.City)
	assert.Equal(t, "USA", records[0].Location.Country)
	assert.Greater(t, records[0].Score, 50.0)
}

func TestFinder_RetriesThenSucceeds(t *testing.T) {
	api := &fakeAPI{items: []youtube.SearchItem{channelItem("def456")}}
	pages := &fakeChannelPages{
		about:       map[string]model.ChannelExtraction{"def456": {ChannelID: "def456"}},
		failuresPer: 2,
	}
	st := newFakeStore()

	f := newTestFinder(FinderConfig{Query: "cooking", ResultsDir: t.TempDir()}, api, pages, st)

	summary, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunSummary{Processed: 1, Succeeded: 1}, summary)
	assert.Equal(t, 3, pages.calls)
	assert.Empty(t, st.failures["run-1"])
}

func TestFinder_ExhaustedBudgetRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	api := &fakeAPI{items: []youtube.SearchItem{channelItem("ghi789")}}
	pages := &fakeChannelPages{} // no pages at all, every attempt fails
	st := newFakeStore()

	f := newTestFinder(FinderConfig{Query: "cooking", ResultsDir: dir}, api, pages, st)

	summary, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunSummary{Processed: 1, Skipped: 1}, summary)
	require.Len(t, st.failures["run-1"], 1)
	assert.Equal(t, model.FailureRecord{
		ID: "ghi789", Reason: model.FailureReasonRetries, Attempts: 3,
	}, st.failures["run-1"][0])

	data, err := os.ReadFile(filepath.Join(dir, "20240115_103000_cooking_failed.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ghi789,skipped_after_retries,3")

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestFinder_MinSubscribersFilter(t *testing.T) {
	api := &fakeAPI{items: []youtube.SearchItem{channelItem("def456")}}
	pages := &fakeChannelPages{
		about: map[string]model.ChannelExtraction{
			"def456": {ChannelID: "def456", SubscriberCount: 900},
		},
	}
	st := newFakeStore()

	f := newTestFinder(FinderConfig{
		Query:          "cooking",
		MinSubscribers: 10000,
		ResultsDir:     t.TempDir(),
	}, api, pages, st)

	summary, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunSummary{Processed: 1, Skipped: 1}, summary)
	assert.Empty(t, st.exported)
}

func TestFinder_SearchErrorIsFatal(t *testing.T) {
	api := &fakeAPI{searchErr: errors.New("quota exceeded")}
	st := newFakeStore()

	f := newTestFinder(FinderConfig{Query: "cooking", ResultsDir: t.TempDir()}, api, &fakeChannelPages{}, st)

	_, err := f.Run(context.Background())
	require.Error(t, err)

	run, getErr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

func TestFinder_InterruptBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{items: []youtube.SearchItem{channelItem("def456"), channelItem("ghi789")}}
	pages := &fakeChannelPages{
		about: map[string]model.ChannelExtraction{
			"def456": {ChannelID: "def456"},
			"ghi789": {ChannelID: "ghi789"},
		},
	}
	st := newFakeStore()

	// Cancel as soon as the first about page has been served.
	wrapped := &cancelAfterFirst{inner: pages, cancel: cancel}
	f := newTestFinder(FinderConfig{Query: "cooking", ResultsDir: t.TempDir()}, api, wrapped, st)

	summary, err := f.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.RunSummary{Processed: 1, Succeeded: 1}, summary)
	run, getErr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusInterrupted, run.Status)
}

func TestFinder_InterruptMidAttemptUncountsItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{items: []youtube.SearchItem{channelItem("def456"), channelItem("ghi789")}}
	pages := &fakeChannelPages{
		about: map[string]model.ChannelExtraction{
			"def456": {ChannelID: "def456"},
			"ghi789": {ChannelID: "ghi789"},
		},
	}
	st := newFakeStore()

	// Cancel while the second item's attempt is in flight.
	wrapped := &cancelDuringSecond{inner: pages, cancel: cancel}
	f := newTestFinder(FinderConfig{Query: "cooking", ResultsDir: t.TempDir()}, api, wrapped, st)

	summary, err := f.Run(ctx)
	require.NoError(t, err)

	// The aborted second item lands in no bucket at all; the summary
	// still adds up and the item is picked up again next run.
	assert.Equal(t, model.RunSummary{Processed: 1, Succeeded: 1}, summary)
	run, getErr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusInterrupted, run.Status)
}

type cancelAfterFirst struct {
	inner  *fakeChannelPages
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) ChannelAbout(ctx context.Context, ep *proxy.Endpoint, channelURL string) (*model.ChannelExtraction, error) {
	out, err := c.inner.ChannelAbout(ctx, ep, channelURL)
	c.cancel()
	return out, err
}

func (c *cancelAfterFirst) ChannelVideos(ctx context.Context, ep *proxy.Endpoint, channelURL string, limit int) ([]model.SampleVideo, error) {
	return c.inner.ChannelVideos(ctx, ep, channelURL, limit)
}

// cancelDuringSecond serves the first channel normally, then cancels the
// run from inside the second channel's attempt.
type cancelDuringSecond struct {
	inner  *fakeChannelPages
	calls  int
	cancel context.CancelFunc
}

func (c *cancelDuringSecond) ChannelAbout(ctx context.Context, ep *proxy.Endpoint, channelURL string) (*model.ChannelExtraction, error) {
	c.calls++
	if c.calls > 1 {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.inner.ChannelAbout(ctx, ep, channelURL)
}

func (c *cancelDuringSecond) ChannelVideos(ctx context.Context, ep *proxy.Endpoint, channelURL string, limit int) ([]model.SampleVideo, error) {
	return c.inner.ChannelVideos(ctx, ep, channelURL, limit)
}
