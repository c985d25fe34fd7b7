package youtube

import "strconv"

// SearchItem is one result from the search endpoint. A channel search
// returns a mix of youtube#channel and youtube#video items; video items
// still carry the owning channel in their snippet.
type SearchItem struct {
	ID      SearchID      `json:"id"`
	Snippet SearchSnippet `json:"snippet"`
}

// SearchID identifies a search result by kind.
type SearchID struct {
	Kind      string `json:"kind"`
	ChannelID string `json:"channelId"`
	VideoID   string `json:"videoId"`
}

// SearchSnippet holds the display fields of a search result.
type SearchSnippet struct {
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

// ChannelID resolves the channel a search item points at, regardless of
// result kind.
func (s SearchItem) ChannelID() string {
	if s.ID.ChannelID != "" {
		return s.ID.ChannelID
	}
	return s.Snippet.ChannelID
}

type searchResponse struct {
	Items         []SearchItem `json:"items"`
	NextPageToken string       `json:"nextPageToken"`
}

// Channel is a channels.list resource.
type Channel struct {
	ID         string            `json:"id"`
	Snippet    ChannelSnippet    `json:"snippet"`
	Statistics ChannelStatistics `json:"statistics"`
}

// ChannelSnippet holds channel display fields.
type ChannelSnippet struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CustomURL   string `json:"customUrl"`
	Country     string `json:"country"`
}

// ChannelStatistics holds channel counters. The API serializes them as
// strings.
type ChannelStatistics struct {
	SubscriberCount string `json:"subscriberCount"`
	VideoCount      string `json:"videoCount"`
	ViewCount       string `json:"viewCount"`
}

// Subscribers returns the subscriber count as an integer, 0 when hidden
// or unparseable.
func (s ChannelStatistics) Subscribers() int64 { return parseStat(s.SubscriberCount) }

// Videos returns the upload count as an integer.
func (s ChannelStatistics) Videos() int64 { return parseStat(s.VideoCount) }

// Views returns the lifetime view count as an integer.
func (s ChannelStatistics) Views() int64 { return parseStat(s.ViewCount) }

type channelsResponse struct {
	Items []Channel `json:"items"`
}

// Video is a videos.list resource.
type Video struct {
	ID             string          `json:"id"`
	Snippet        VideoSnippet    `json:"snippet"`
	Statistics     VideoStatistics `json:"statistics"`
	ContentDetails ContentDetails  `json:"contentDetails"`
}

// VideoSnippet holds video display fields.
type VideoSnippet struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ChannelID    string   `json:"channelId"`
	ChannelTitle string   `json:"channelTitle"`
	PublishedAt  string   `json:"publishedAt"`
	Tags         []string `json:"tags"`
	CategoryID   string   `json:"categoryId"`
}

// VideoStatistics holds video counters, string-serialized by the API.
type VideoStatistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

// Views returns the view count as an integer.
func (s VideoStatistics) Views() int64 { return parseStat(s.ViewCount) }

// Likes returns the like count as an integer.
func (s VideoStatistics) Likes() int64 { return parseStat(s.LikeCount) }

// Comments returns the comment count as an integer.
func (s VideoStatistics) Comments() int64 { return parseStat(s.CommentCount) }

// ContentDetails holds the ISO-8601 duration.
type ContentDetails struct {
	Duration string `json:"duration"`
}

type videosResponse struct {
	Items []Video `json:"items"`
}

func parseStat(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
