// Package sink persists run output under the results directory. Each
// save is a full rewrite of the run's snapshot files, so saving after
// every item is idempotent and an interrupted run leaves a complete,
// loadable snapshot on disk.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reachlab/creator-scout/internal/model"
)

const timestampLayout = "20060102_150405"

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug normalizes a query into a filename fragment.
func Slug(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

// FileSink writes one run's CSV and JSON snapshots. File names embed the
// run's start timestamp and query slug, so every run gets a distinct pair
// and repeated saves within a run overwrite the same files.
type FileSink struct {
	dir  string
	stem string
}

// NewFileSink creates the results directory if needed and fixes the run's
// file stem from its start time and query.
func NewFileSink(dir, query string, startedAt time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "sink: create results dir")
	}
	return &FileSink{
		dir:  dir,
		stem: startedAt.Format(timestampLayout) + "_" + Slug(query),
	}, nil
}

// Path returns the full path for a snapshot file of this run.
func (s *FileSink) Path(suffix string) string {
	return filepath.Join(s.dir, s.stem+"_"+suffix)
}

// SaveChannels rewrites the channel CSV and JSON snapshots.
func (s *FileSink) SaveChannels(records []model.CreatorRecord) error {
	if len(records) == 0 {
		return nil
	}

	header := []string{
		"channel_id", "channel_name", "channel_url", "channel_description",
		"subscriber_count", "channel_video_count", "channel_view_count",
		"sample_video_id", "sample_video_title", "sample_video_url",
		"detected_location", "location_sources", "about_text",
		"social_links", "websites", "contact_email_public", "all_emails",
		"confidence_score", "extraction_path", "scraped_at",
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		var sample model.SampleVideo
		if len(r.SampleVideos) > 0 {
			sample = r.SampleVideos[0]
		}
		rows = append(rows, []string{
			r.ChannelID, r.ChannelName, r.ChannelURL, r.Description,
			strconv.FormatInt(r.Subscribers.Value, 10),
			strconv.FormatInt(r.VideoCount.Value, 10),
			strconv.FormatInt(r.ViewCount.Value, 10),
			sample.VideoID, sample.Title, sample.URL,
			jsonCell(r.Location), jsonCell(r.Location.Sources), r.AboutText,
			jsonCell(r.SocialLinks), jsonCell(r.Websites), r.ContactEmail, jsonCell(r.Emails),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			r.ExtractionPath, r.ScrapedAt.Format(time.RFC3339),
		})
	}

	if err := writeCSV(s.Path("channels.csv"), header, rows); err != nil {
		return err
	}
	if err := writeJSON(s.Path("channels.json"), records); err != nil {
		return err
	}
	zap.L().Info("saved progress", zap.Int("channels", len(records)), zap.String("file", s.stem+"_channels.csv"))
	return nil
}

// SaveVideos rewrites the video CSV and JSON snapshots.
func (s *FileSink) SaveVideos(records []model.VideoRecord) error {
	if len(records) == 0 {
		return nil
	}

	header := []string{
		"video_id", "title", "view_count", "like_count", "comment_count",
		"upload_date", "duration_seconds", "tags", "is_live", "video_category",
		"channel_id", "channel_name", "channel_url", "channel_handle",
		"channel_subscriber_count", "channel_video_count", "channel_view_count",
		"business_email", "social_links", "contact_source",
		"extraction_path", "scraped_at",
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.VideoID, r.Title,
			strconv.FormatInt(r.ViewCount.Value, 10),
			strconv.FormatInt(r.LikeCount.Value, 10),
			strconv.FormatInt(r.CommentCount.Value, 10),
			r.UploadDate, strconv.Itoa(r.DurationSeconds),
			jsonCell(r.Tags), strconv.FormatBool(r.IsLive), r.Category,
			r.ChannelID, r.ChannelName, r.ChannelURL, r.ChannelHandle,
			strconv.FormatInt(r.ChannelSubscribers.Value, 10),
			strconv.FormatInt(r.ChannelVideoCount.Value, 10),
			strconv.FormatInt(r.ChannelViewCount.Value, 10),
			r.BusinessEmail, jsonCell(r.SocialLinks), jsonCell(r.ContactSource),
			r.ExtractionPath, r.ScrapedAt.Format(time.RFC3339),
		})
	}

	if err := writeCSV(s.Path("videos.csv"), header, rows); err != nil {
		return err
	}
	if err := writeJSON(s.Path("videos.json"), records); err != nil {
		return err
	}
	zap.L().Info("saved progress", zap.Int("videos", len(records)), zap.String("file", s.stem+"_videos.csv"))
	return nil
}

// SaveFailures rewrites the failed-items CSV.
func (s *FileSink) SaveFailures(failures []model.FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.ID, f.Reason, strconv.Itoa(f.Attempts)})
	}
	return writeCSV(s.Path("failed.csv"), []string{"id", "reason", "attempts"}, rows)
}

// jsonCell encodes a list or object value for embedding in a CSV cell.
func jsonCell(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// writeCSV writes to a temp file in the same directory and renames it
// into place, so readers never observe a half-written snapshot.
func writeCSV(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "sink: create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "sink: write csv header")
	}
	if err := w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "sink: write csv rows")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "sink: flush csv")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "sink: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrap(err, "sink: replace csv")
	}
	return nil
}

func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "sink: create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "sink: encode json")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "sink: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrap(err, "sink: replace json")
	}
	return nil
}
