package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reachlab/creator-scout/internal/dedup"
	"github.com/reachlab/creator-scout/internal/location"
	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/internal/proxy"
	"github.com/reachlab/creator-scout/internal/sink"
	"github.com/reachlab/creator-scout/internal/store"
	"github.com/reachlab/creator-scout/pkg/youtube"
)

// ChannelExtractor scrapes a channel's public pages. One extraction
// attempt owns a single session through one proxy endpoint.
type ChannelExtractor interface {
	ChannelAbout(ctx context.Context, ep *proxy.Endpoint, channelURL string) (*model.ChannelExtraction, error)
	ChannelVideos(ctx context.Context, ep *proxy.Endpoint, channelURL string, limit int) ([]model.SampleVideo, error)
}

// FinderConfig holds the parameters of one discovery run.
type FinderConfig struct {
	Query          string
	TargetLocation string
	MaxResults     int
	RegionCode     string
	MinSubscribers int64
	SampleVideos   int
	ResultsDir     string
}

// Finder runs the discovery flow: API search, cross-run dedup, per-item
// scrape with retries, fusion, location inference, scoring, and
// incremental persistence. Items are processed strictly sequentially.
type Finder struct {
	cfg     FinderConfig
	api     youtube.Client
	pages   ChannelExtractor
	orch    *Orchestrator
	locator *location.Engine
	store   store.Store
}

// NewFinder wires a Finder. MaxResults defaults to 20 and SampleVideos
// to 3 when unset.
func NewFinder(cfg FinderConfig, api youtube.Client, pages ChannelExtractor, orch *Orchestrator, locator *location.Engine, st store.Store) *Finder {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.SampleVideos <= 0 {
		cfg.SampleVideos = 3
	}
	return &Finder{cfg: cfg, api: api, pages: pages, orch: orch, locator: locator, store: st}
}

// channelScrape is the combined result of one scrape session. The about
// page is required; sample videos are best effort.
type channelScrape struct {
	about   *model.ChannelExtraction
	samples []model.SampleVideo
}

// Run executes the discovery flow. Per-item failures degrade to recorded
// skips; only search errors and context cancellation before the item loop
// are fatal. Cancellation between items finishes the run as interrupted
// with the snapshot already on disk.
func (f *Finder) Run(ctx context.Context) (model.RunSummary, error) {
	var summary model.RunSummary
	start := time.Now()
	log := zap.L().With(zap.String("query", f.cfg.Query), zap.String("location", f.cfg.TargetLocation))

	run, err := f.store.CreateRun(ctx, model.RunKindFind, f.cfg.Query, f.cfg.TargetLocation)
	if err != nil {
		return summary, eris.Wrap(err, "pipeline: create run")
	}
	status := model.RunStatusFailed
	defer func() {
		if completeErr := f.store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, summary); completeErr != nil {
			log.Warn("pipeline: complete run", zap.Error(completeErr))
		}
	}()

	out, err := sink.NewFileSink(f.cfg.ResultsDir, f.cfg.Query, run.CreatedAt)
	if err != nil {
		return summary, err
	}

	seen := dedup.Load(f.cfg.ResultsDir)
	if exported, idsErr := f.store.ExportedIDs(ctx); idsErr != nil {
		log.Warn("pipeline: load exported ids", zap.Error(idsErr))
	} else {
		for _, id := range exported {
			seen.Add(id)
		}
	}

	searchQuery := f.cfg.Query
	if f.cfg.TargetLocation != "" {
		searchQuery += " " + f.cfg.TargetLocation
	}
	// Search past the requested count so dedup skips still leave a full
	// result set.
	items, err := f.api.SearchChannels(ctx, searchQuery, f.cfg.MaxResults*2, f.regionCode())
	if err != nil {
		return summary, eris.Wrap(err, "pipeline: channel search")
	}

	candidates, sampleByChannel := collectCandidates(items)
	log.Info("pipeline: search complete", zap.Int("results", len(items)), zap.Int("channels", len(candidates)))

	details, err := f.api.ChannelDetails(ctx, candidates)
	if err != nil {
		log.Warn("pipeline: channel details unavailable, continuing scrape-only", zap.Error(err))
		details = map[string]youtube.Channel{}
	}

	var records []model.CreatorRecord
	var failures []model.FailureRecord
	var exported []string

	for _, channelID := range candidates {
		if ctx.Err() != nil {
			status = model.RunStatusInterrupted
			log.Info("pipeline: interrupted", zap.Int("processed", summary.Processed))
			return summary, nil
		}
		if len(records) >= f.cfg.MaxResults {
			break
		}
		if seen.Contains(channelID) {
			summary.Skipped++
			log.Debug("pipeline: already exported", zap.String("channel_id", channelID))
			continue
		}
		summary.Processed++

		channelURL := "https://www.youtube.com/channel/" + channelID
		scrape, failure, attemptErr := attempt(ctx, f.orch, channelID, func(ctx context.Context, ep *proxy.Endpoint) (channelScrape, error) {
			about, aboutErr := f.pages.ChannelAbout(ctx, ep, channelURL)
			if aboutErr != nil {
				return channelScrape{}, aboutErr
			}
			samples, videosErr := f.pages.ChannelVideos(ctx, ep, channelURL, f.cfg.SampleVideos)
			if videosErr != nil {
				zap.L().Warn("pipeline: sample videos unavailable", zap.String("channel_id", channelID), zap.Error(videosErr))
			}
			return channelScrape{about: about, samples: samples}, nil
		})
		if attemptErr != nil {
			// The aborted item has no outcome; uncount it so the
			// interrupted summary adds up. It is retried next run.
			summary.Processed--
			status = model.RunStatusInterrupted
			return summary, nil
		}

		if failure != nil {
			summary.Skipped++
			failures = append(failures, *failure)
			if recErr := f.store.RecordFailure(ctx, run.ID, *failure); recErr != nil {
				log.Warn("pipeline: record failure", zap.Error(recErr))
			}
			if saveErr := out.SaveFailures(failures); saveErr != nil {
				log.Warn("pipeline: save failures", zap.Error(saveErr))
			}
			continue
		}
		scraped := scrape.about
		scraped.SampleVideos = scrape.samples

		var apiChannel *youtube.Channel
		if ch, ok := details[channelID]; ok {
			apiChannel = &ch
		}

		rec := FuseChannel(apiChannel, scraped, time.Now().UTC())
		if len(rec.SampleVideos) == 0 {
			if sample, ok := sampleByChannel[channelID]; ok {
				rec.SampleVideos = []model.SampleVideo{sample}
			}
		}

		if f.cfg.MinSubscribers > 0 && rec.Subscribers.Value < f.cfg.MinSubscribers {
			summary.Skipped++
			log.Debug("pipeline: below subscriber floor",
				zap.String("channel_id", channelID),
				zap.Int64("subscribers", rec.Subscribers.Value))
			continue
		}

		rec.Location = f.locator.Aggregate(rec.AboutText, sampleTitles(rec.SampleVideos), rec.Websites, f.cfg.TargetLocation)
		rec.Score = Score(rec, f.cfg.Query, f.cfg.TargetLocation)

		records = append(records, rec)
		exported = append(exported, rec.ChannelID)
		seen.Add(rec.ChannelID)
		summary.Succeeded++

		if saveErr := out.SaveChannels(records); saveErr != nil {
			log.Warn("pipeline: save snapshot", zap.Error(saveErr))
		}
	}

	Rank(records)
	if saveErr := out.SaveChannels(records); saveErr != nil {
		log.Warn("pipeline: save final snapshot", zap.Error(saveErr))
	}
	if saveErr := out.SaveFailures(failures); saveErr != nil {
		log.Warn("pipeline: save failures", zap.Error(saveErr))
	}
	if markErr := f.store.MarkExported(ctx, run.ID, exported); markErr != nil {
		log.Warn("pipeline: mark exported", zap.Error(markErr))
	}

	status = model.RunStatusComplete
	log.Info("pipeline: run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", time.Since(start)))
	return summary, nil
}

// regionCode maps a bare two-letter location hint to a region code,
// otherwise uses the configured one.
func (f *Finder) regionCode() string {
	hint := strings.TrimSpace(f.cfg.TargetLocation)
	if len(hint) == 2 {
		return strings.ToUpper(hint)
	}
	return f.cfg.RegionCode
}

// collectCandidates extracts unique channel ids from mixed search
// results in encounter order, and remembers one sample video per channel
// for channels only surfaced through their videos.
func collectCandidates(items []youtube.SearchItem) ([]string, map[string]model.SampleVideo) {
	var ids []string
	index := make(map[string]struct{}, len(items))
	samples := make(map[string]model.SampleVideo)

	for _, item := range items {
		channelID := item.ChannelID()
		if channelID == "" {
			continue
		}
		if _, ok := index[channelID]; !ok {
			index[channelID] = struct{}{}
			ids = append(ids, channelID)
		}
		if item.ID.VideoID != "" {
			if _, ok := samples[channelID]; !ok {
				samples[channelID] = model.SampleVideo{
					VideoID: item.ID.VideoID,
					Title:   item.Snippet.Title,
					URL:     "https://www.youtube.com/watch?v=" + item.ID.VideoID,
				}
			}
		}
	}
	return ids, samples
}

func sampleTitles(videos []model.SampleVideo) []string {
	titles := make([]string, 0, len(videos))
	for _, v := range videos {
		if v.Title != "" {
			titles = append(titles, v.Title)
		}
	}
	return titles
}
