// Package youtube provides a client for the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// maxBatchSize is the API's per-request cap on ids and results.
const maxBatchSize = 50

// Client defines the Data API operations the pipeline needs.
type Client interface {
	// SearchChannels searches for channels (and videos whose snippet
	// reveals a channel) matching query, following pagination up to
	// maxResults items. regionCode optionally biases results.
	SearchChannels(ctx context.Context, query string, maxResults int, regionCode string) ([]SearchItem, error)
	// ChannelDetails fetches channel resources keyed by id. Ids the API
	// does not return are simply absent from the map.
	ChannelDetails(ctx context.Context, ids []string) (map[string]Channel, error)
	// VideoDetails fetches video resources keyed by id, with the same
	// absent-id behavior as ChannelDetails.
	VideoDetails(ctx context.Context, ids []string) (map[string]Video, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(base string) Option {
	return func(c *httpClient) {
		c.baseURL = base
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	channels *idCache[Channel]
	videos   *idCache[Video]
}

// NewClient creates a YouTube Data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter:  rate.NewLimiter(10, 10),
		channels: newIDCache[Channel](),
		videos:   newIDCache[Video](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// get performs a rate-limited GET with exponential backoff on transient
// failures and unmarshals the response into out.
func (c *httpClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	const maxAttempts = 3
	backoff := 1 * time.Second

	params.Set("key", c.apiKey)
	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "youtube: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return eris.Wrap(err, "youtube: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return eris.Wrap(lastErr, "youtube: send request")
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return eris.Wrap(readErr, "youtube: read response")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("youtube: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("youtube: unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "youtube: unmarshal response")
		}
		return nil
	}

	return eris.Wrap(lastErr, "youtube: request failed")
}

func (c *httpClient) SearchChannels(ctx context.Context, query string, maxResults int, regionCode string) ([]SearchItem, error) {
	var results []SearchItem
	pageToken := ""

	for len(results) < maxResults {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("q", query)
		params.Set("type", "channel,video")
		params.Set("maxResults", strconv.Itoa(min(maxBatchSize, maxResults-len(results))))
		if regionCode != "" {
			params.Set("regionCode", regionCode)
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page searchResponse
		if err := c.get(ctx, "/search", params, &page); err != nil {
			return nil, err
		}
		results = append(results, page.Items...)

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
		zap.L().Debug("search page fetched", zap.String("query", query), zap.Int("results", len(results)))
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (c *httpClient) ChannelDetails(ctx context.Context, ids []string) (map[string]Channel, error) {
	results := make(map[string]Channel, len(ids))

	for _, batch := range batches(ids) {
		uncached := c.channels.misses(batch)
		if len(uncached) > 0 {
			params := url.Values{}
			params.Set("part", "snippet,statistics,contentDetails,brandingSettings")
			params.Set("id", strings.Join(uncached, ","))

			var page channelsResponse
			if err := c.get(ctx, "/channels", params, &page); err != nil {
				return nil, err
			}
			for _, item := range page.Items {
				c.channels.put(item.ID, item)
			}
		}

		for _, id := range batch {
			if ch, ok := c.channels.get(id); ok {
				results[id] = ch
			}
		}
	}
	return results, nil
}

func (c *httpClient) VideoDetails(ctx context.Context, ids []string) (map[string]Video, error) {
	results := make(map[string]Video, len(ids))

	for _, batch := range batches(ids) {
		uncached := c.videos.misses(batch)
		if len(uncached) > 0 {
			params := url.Values{}
			params.Set("part", "snippet,statistics,contentDetails")
			params.Set("id", strings.Join(uncached, ","))

			var page videosResponse
			if err := c.get(ctx, "/videos", params, &page); err != nil {
				return nil, err
			}
			for _, item := range page.Items {
				c.videos.put(item.ID, item)
			}
		}

		for _, id := range batch {
			if v, ok := c.videos.get(id); ok {
				results[id] = v
			}
		}
	}
	return results, nil
}

// batches splits ids into API-sized groups.
func batches(ids []string) [][]string {
	var out [][]string
	for i := 0; i < len(ids); i += maxBatchSize {
		out = append(out, ids[i:min(i+maxBatchSize, len(ids))])
	}
	return out
}
