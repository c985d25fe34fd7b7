package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reachlab/creator-scout/internal/dedup"
	"github.com/reachlab/creator-scout/internal/extract"
	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/internal/proxy"
	"github.com/reachlab/creator-scout/internal/sink"
	"github.com/reachlab/creator-scout/internal/store"
	"github.com/reachlab/creator-scout/pkg/youtube"
)

// VideoExtractor scrapes watch pages and expands search-results pages
// into video ids.
type VideoExtractor interface {
	Video(ctx context.Context, ep *proxy.Endpoint, videoID string) (*model.VideoExtraction, error)
	SearchVideoIDs(ctx context.Context, ep *proxy.Endpoint, searchURL string, limit int) ([]string, error)
}

var bareIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ScraperConfig holds the parameters of one explicit scrape run.
type ScraperConfig struct {
	// Inputs are watch URLs, bare 11-character video ids, or
	// search-results URLs to expand.
	Inputs     []string
	MaxResults int
	ResultsDir string
}

// Scraper runs the explicit scrape flow: resolve inputs to video ids,
// scrape each watch page with retries, enrich gaps from the API when a
// client is available, and persist incrementally.
type Scraper struct {
	cfg   ScraperConfig
	api   youtube.Client // nil means scrape-only
	pages VideoExtractor
	orch  *Orchestrator
	store store.Store
}

// NewScraper wires a Scraper. MaxResults bounds search-URL expansion and
// defaults to 50.
func NewScraper(cfg ScraperConfig, api youtube.Client, pages VideoExtractor, orch *Orchestrator, st store.Store) *Scraper {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	return &Scraper{cfg: cfg, api: api, pages: pages, orch: orch, store: st}
}

// Run executes the scrape flow. Semantics match Finder.Run: per-item
// failures degrade to recorded skips, cancellation between items ends the
// run as interrupted with the snapshot on disk.
func (s *Scraper) Run(ctx context.Context) (model.RunSummary, error) {
	var summary model.RunSummary
	start := time.Now()
	query := strings.Join(s.cfg.Inputs, " ")
	log := zap.L().With(zap.Int("inputs", len(s.cfg.Inputs)))

	run, err := s.store.CreateRun(ctx, model.RunKindScrape, query, "")
	if err != nil {
		return summary, eris.Wrap(err, "pipeline: create run")
	}
	status := model.RunStatusFailed
	defer func() {
		if completeErr := s.store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, summary); completeErr != nil {
			log.Warn("pipeline: complete run", zap.Error(completeErr))
		}
	}()

	out, err := sink.NewFileSink(s.cfg.ResultsDir, "scrape", run.CreatedAt)
	if err != nil {
		return summary, err
	}

	ids, err := s.resolveInputs(ctx)
	if err != nil {
		return summary, err
	}
	log.Info("pipeline: scrape targets resolved", zap.Int("videos", len(ids)))

	seen := dedup.Load(s.cfg.ResultsDir)
	if exported, idsErr := s.store.ExportedIDs(ctx); idsErr != nil {
		log.Warn("pipeline: load exported ids", zap.Error(idsErr))
	} else {
		for _, id := range exported {
			seen.Add(id)
		}
	}

	var details map[string]youtube.Video
	if s.api != nil {
		if details, err = s.api.VideoDetails(ctx, ids); err != nil {
			log.Warn("pipeline: video details unavailable, continuing scrape-only", zap.Error(err))
			details = nil
		}
	}

	var records []model.VideoRecord
	var failures []model.FailureRecord
	var exported []string

	for _, videoID := range ids {
		if ctx.Err() != nil {
			status = model.RunStatusInterrupted
			log.Info("pipeline: interrupted", zap.Int("processed", summary.Processed))
			return summary, nil
		}
		if seen.Contains(videoID) {
			summary.Skipped++
			log.Debug("pipeline: already exported", zap.String("video_id", videoID))
			continue
		}
		summary.Processed++

		scraped, failure, attemptErr := attempt(ctx, s.orch, videoID, func(ctx context.Context, ep *proxy.Endpoint) (*model.VideoExtraction, error) {
			return s.pages.Video(ctx, ep, videoID)
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
			if recErr := s.store.RecordFailure(ctx, run.ID, *failure); recErr != nil {
				log.Warn("pipeline: record failure", zap.Error(recErr))
			}
			if saveErr := out.SaveFailures(failures); saveErr != nil {
				log.Warn("pipeline: save failures", zap.Error(saveErr))
			}
			continue
		}

		var apiVideo *youtube.Video
		if v, ok := details[videoID]; ok {
			apiVideo = &v
		}
		channel := s.channelDetail(ctx, scraped, apiVideo)

		rec := FuseVideo(scraped, apiVideo, channel, time.Now().UTC())
		records = append(records, rec)
		exported = append(exported, rec.VideoID)
		seen.Add(rec.VideoID)
		summary.Succeeded++

		if saveErr := out.SaveVideos(records); saveErr != nil {
			log.Warn("pipeline: save snapshot", zap.Error(saveErr))
		}
	}

	if saveErr := out.SaveVideos(records); saveErr != nil {
		log.Warn("pipeline: save final snapshot", zap.Error(saveErr))
	}
	if saveErr := out.SaveFailures(failures); saveErr != nil {
		log.Warn("pipeline: save failures", zap.Error(saveErr))
	}
	if markErr := s.store.MarkExported(ctx, run.ID, exported); markErr != nil {
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

// resolveInputs turns the mixed input list into unique video ids in
// encounter order. Search URLs are expanded through the retry
// orchestrator; an input that matches no known shape is logged and
// dropped.
func (s *Scraper) resolveInputs(ctx context.Context) ([]string, error) {
	var ids []string
	index := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := index[id]; ok {
			return
		}
		index[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, input := range s.cfg.Inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if extract.IsSearchURL(input) {
			found, failure, err := attempt(ctx, s.orch, input, func(ctx context.Context, ep *proxy.Endpoint) ([]string, error) {
				return s.pages.SearchVideoIDs(ctx, ep, input, s.cfg.MaxResults)
			})
			if err != nil {
				return nil, err
			}
			if failure != nil {
				zap.L().Warn("pipeline: search page unavailable", zap.String("url", input))
				continue
			}
			for _, id := range found {
				add(id)
			}
			continue
		}

		if id := extract.VideoIDFromURL(input); id != "" {
			add(id)
			continue
		}
		if bareIDRe.MatchString(input) {
			add(input)
			continue
		}
		zap.L().Warn("pipeline: unrecognized input", zap.String("input", input))
	}
	return ids, nil
}

// channelDetail fetches the owning channel's statistics for enrichment.
// The client's id cache keeps repeated lookups for one channel cheap.
func (s *Scraper) channelDetail(ctx context.Context, scraped *model.VideoExtraction, apiVideo *youtube.Video) *youtube.Channel {
	if s.api == nil {
		return nil
	}
	channelID := ""
	if scraped != nil {
		channelID = scraped.ChannelID
	}
	if channelID == "" && apiVideo != nil {
		channelID = apiVideo.Snippet.ChannelID
	}
	if channelID == "" {
		return nil
	}
	channels, err := s.api.ChannelDetails(ctx, []string{channelID})
	if err != nil {
		zap.L().Warn("pipeline: channel enrichment unavailable", zap.String("channel_id", channelID), zap.Error(err))
		return nil
	}
	if ch, ok := channels[channelID]; ok {
		return &ch
	}
	return nil
}
