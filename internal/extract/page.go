package extract

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/internal/proxy"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// Watch pages embed two large JSON blobs; anything past this is ads
	// and recommendations.
	maxBodyBytes = 4 << 20
)

// Patterns against the embedded player/initial-data JSON. All string
// captures may contain JSON escapes and go through unescapeJSON.
var (
	channelIDRe   = regexp.MustCompile(`"(?:channelId|externalId)":"(UC[a-zA-Z0-9_-]{22})"`)
	descriptionRe = regexp.MustCompile(`"description":\{"simpleText":"((?:[^"\\]|\\.)*)"`)
	metaDescRe    = regexp.MustCompile(`<meta\s+(?:name|property)="(?:description|og:description)"\s+content="([^"]*)"`)
	subCountRe    = regexp.MustCompile(`"subscriberCountText":\{"simpleText":"([^"]+)"`)
	hrefRe        = regexp.MustCompile(`href="([^"]+)"`)
	channelLinkRe = regexp.MustCompile(`"channelExternalLinkViewModel".*?"content":"((?:[^"\\]|\\.)*)"`)

	videoEntryRe = regexp.MustCompile(`"videoId":"([a-zA-Z0-9_-]{11})".{0,400}?"title":\{"runs":\[\{"text":"((?:[^"\\]|\\.)*)"`)
	videoIDRe    = regexp.MustCompile(`"videoId":"([a-zA-Z0-9_-]{11})"`)

	watchTitleRe   = regexp.MustCompile(`"videoDetails":\{.*?"title":"((?:[^"\\]|\\.)*)"`)
	shortDescRe    = regexp.MustCompile(`"shortDescription":"((?:[^"\\]|\\.)*)"`)
	viewCountRe    = regexp.MustCompile(`"viewCount":"(\d+)"`)
	likeLabelRe    = regexp.MustCompile(`"accessibilityText":"([\d.,KMB]+ likes?)`)
	commentCountRe = regexp.MustCompile(`"commentCount":\{"simpleText":"([^"]+)"`)
	lengthRe       = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)
	keywordsRe     = regexp.MustCompile(`"keywords":\s*\[(.*?)\]`)
	keywordRe      = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	isLiveRe       = regexp.MustCompile(`"isLiveContent":(true|false)`)
	categoryRe     = regexp.MustCompile(`"category":"([^"]+)"`)
	uploadDateRe   = regexp.MustCompile(`"uploadDate":"([^"]+)"`)
	ownerNameRe    = regexp.MustCompile(`"ownerChannelName":"((?:[^"\\]|\\.)*)"`)
	ownerProfileRe = regexp.MustCompile(`"ownerProfileUrl":"http[^"]*youtube\.com/(@[^"]+)"`)
	watchChanIDRe  = regexp.MustCompile(`"channelId":"(UC[a-zA-Z0-9_-]{22})"`)
)

// Extractor fetches public pages through an optional proxy endpoint and
// pulls fields out of the embedded initial-data JSON. It is safe for
// concurrent use; the per-endpoint HTTP clients are cached.
type Extractor struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter

	mu      sync.Mutex
	clients map[string]*http.Client
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithRateLimit caps outbound page fetches at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(e *Extractor) { e.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithUserAgent overrides the browser user agent sent on every fetch.
func WithUserAgent(ua string) Option {
	return func(e *Extractor) { e.userAgent = ua }
}

// WithBaseURL overrides the site root for watch-page fetches. Used in
// tests.
func WithBaseURL(base string) Option {
	return func(e *Extractor) { e.baseURL = strings.TrimRight(base, "/") }
}

// New creates an Extractor with defaults matching an interactive browser
// session: 30s timeout and 1 fetch/sec.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		baseURL:   "https://www.youtube.com",
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		clients:   make(map[string]*http.Client),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// client returns the cached HTTP client for ep (nil means direct).
func (e *Extractor) client(ep *proxy.Endpoint) *http.Client {
	key := ""
	if ep != nil {
		key = ep.String()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clients[key]; ok {
		return c
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if ep != nil {
		transport.Proxy = http.ProxyURL(ep.URL())
	}
	c := &http.Client{Timeout: e.timeout, Transport: transport}
	e.clients[key] = c
	return c
}

// fetch retrieves a page body, waiting on the rate limiter first and
// running the bot-challenge pre-check before returning anything.
func (e *Extractor) fetch(ctx context.Context, ep *proxy.Endpoint, pageURL string) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extract: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "extract: create request")
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client(ep).Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "extract: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "extract: read body")
	}

	if challenged, marker := DetectChallenge(resp, body); challenged {
		return nil, &ChallengeError{URL: pageURL, Marker: marker}
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("extract: status %d fetching %s", resp.StatusCode, pageURL)
	}
	if len(body) < 100 {
		return nil, eris.Errorf("extract: empty page at %s", pageURL)
	}
	return body, nil
}

// ChannelAbout scrapes a channel's about page: description text, visible
// emails, external links split into social profiles and websites, and
// the displayed subscriber count.
func (e *Extractor) ChannelAbout(ctx context.Context, ep *proxy.Endpoint, channelURL string) (*model.ChannelExtraction, error) {
	body, err := e.fetch(ctx, ep, strings.TrimRight(channelURL, "/")+"/about")
	if err != nil {
		return nil, err
	}
	page := string(body)

	out := &model.ChannelExtraction{ChannelURL: channelURL}
	if m := channelIDRe.FindStringSubmatch(page); m != nil {
		out.ChannelID = m[1]
	}
	if m := descriptionRe.FindStringSubmatch(page); m != nil {
		out.AboutText = unescapeJSON(m[1])
	} else if m := metaDescRe.FindStringSubmatch(page); m != nil {
		out.AboutText = htmlUnescape(m[1])
	}
	if m := subCountRe.FindStringSubmatch(page); m != nil {
		if n, ok := ParseCount(m[1]); ok {
			out.SubscriberCount = n
		}
	}

	links := externalLinks(page)
	out.SocialLinks, out.Websites = SplitLinks(links)
	out.Emails = ExtractEmails(out.AboutText + " " + page)

	zap.L().Debug("about page extracted",
		zap.String("channel_url", channelURL),
		zap.Int("emails", len(out.Emails)),
		zap.Int("social_links", len(out.SocialLinks)))
	return out, nil
}

// ChannelVideos scrapes a channel's videos tab and returns up to limit
// recent uploads in page order.
func (e *Extractor) ChannelVideos(ctx context.Context, ep *proxy.Endpoint, channelURL string, limit int) ([]model.SampleVideo, error) {
	body, err := e.fetch(ctx, ep, strings.TrimRight(channelURL, "/")+"/videos")
	if err != nil {
		return nil, err
	}

	var videos []model.SampleVideo
	seen := make(map[string]struct{})
	for _, m := range videoEntryRe.FindAllStringSubmatch(string(body), -1) {
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		videos = append(videos, model.SampleVideo{
			VideoID: id,
			Title:   unescapeJSON(m[2]),
			URL:     "https://www.youtube.com/watch?v=" + id,
		})
		if limit > 0 && len(videos) >= limit {
			break
		}
	}
	return videos, nil
}

// Video scrapes a watch page for metadata, stats, and any contact
// details in the description.
func (e *Extractor) Video(ctx context.Context, ep *proxy.Endpoint, videoID string) (*model.VideoExtraction, error) {
	body, err := e.fetch(ctx, ep, e.baseURL+"/watch?v="+videoID)
	if err != nil {
		return nil, err
	}
	page := string(body)

	out := &model.VideoExtraction{VideoID: videoID}
	if m := watchTitleRe.FindStringSubmatch(page); m != nil {
		out.Title = unescapeJSON(m[1])
	}
	if m := shortDescRe.FindStringSubmatch(page); m != nil {
		out.Description = unescapeJSON(m[1])
	}
	if m := viewCountRe.FindStringSubmatch(page); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			out.ViewCount = n
		}
	}
	if m := likeLabelRe.FindStringSubmatch(page); m != nil {
		if n, ok := ParseCount(m[1]); ok {
			out.LikeCount = n
		}
	}
	if m := commentCountRe.FindStringSubmatch(page); m != nil {
		if n, ok := ParseCount(m[1]); ok {
			out.CommentCount = n
		}
	}
	if m := lengthRe.FindStringSubmatch(page); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out.DurationSeconds = n
		}
	}
	if m := keywordsRe.FindStringSubmatch(page); m != nil {
		for _, kw := range keywordRe.FindAllStringSubmatch(m[1], -1) {
			out.Tags = append(out.Tags, unescapeJSON(kw[1]))
		}
	}
	if m := isLiveRe.FindStringSubmatch(page); m != nil {
		out.IsLive = m[1] == "true"
	}
	if m := categoryRe.FindStringSubmatch(page); m != nil {
		out.Category = unescapeJSON(m[1])
	}
	if m := uploadDateRe.FindStringSubmatch(page); m != nil {
		out.UploadDate = m[1]
	}
	if m := watchChanIDRe.FindStringSubmatch(page); m != nil {
		out.ChannelID = m[1]
		out.ChannelURL = "https://www.youtube.com/channel/" + m[1]
	}
	if m := ownerNameRe.FindStringSubmatch(page); m != nil {
		out.ChannelName = unescapeJSON(m[1])
	}
	if m := ownerProfileRe.FindStringSubmatch(page); m != nil {
		out.ChannelHandle = m[1]
	}

	if out.Description != "" {
		if emails := ExtractEmails(out.Description); len(emails) > 0 {
			out.BusinessEmail = emails[0]
			out.ContactSource = append(out.ContactSource, "description_email")
		}
		social, _ := SplitLinks(ExtractURLs(out.Description))
		if len(social) > 0 {
			out.SocialLinks = social
			out.ContactSource = append(out.ContactSource, "description_social")
		}
	}

	if out.Title == "" && out.ViewCount == 0 {
		return nil, eris.Errorf("extract: no usable fields on watch page for %s", videoID)
	}
	return out, nil
}

// SearchVideoIDs scrapes a search-results page and returns up to limit
// distinct video ids in result order.
func (e *Extractor) SearchVideoIDs(ctx context.Context, ep *proxy.Endpoint, searchURL string, limit int) ([]string, error) {
	body, err := e.fetch(ctx, ep, searchURL)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, m := range videoIDRe.FindAllStringSubmatch(string(body), -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	zap.L().Info("search results extracted", zap.Int("video_ids", len(ids)))
	return ids, nil
}

// externalLinks collects hrefs and channel-header link blobs, decoding
// redirect wrappers and dropping same-site links.
func externalLinks(page string) []string {
	var links []string
	seen := make(map[string]struct{})

	add := func(raw string) {
		dest := DecodeRedirect(htmlUnescape(raw))
		if dest == "" || !strings.HasPrefix(dest, "http") {
			return
		}
		if strings.Contains(dest, "youtube.com") || strings.Contains(dest, "youtu.be") {
			return
		}
		if _, ok := seen[dest]; ok {
			return
		}
		seen[dest] = struct{}{}
		links = append(links, dest)
	}

	for _, m := range hrefRe.FindAllStringSubmatch(page, -1) {
		add(m[1])
	}
	for _, m := range channelLinkRe.FindAllStringSubmatch(page, -1) {
		add(unescapeJSON(m[1]))
	}
	return links
}

// unescapeJSON resolves escape sequences in a string captured out of an
// embedded JSON blob.
func unescapeJSON(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if out, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return out
	}
	return s
}

func htmlUnescape(s string) string {
	return strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(s)
}
