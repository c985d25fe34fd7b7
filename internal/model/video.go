package model

import "time"

// VideoRecord is the fused output unit for a single video. Scraped values
// win; the API enrichment pass only fills gaps.
type VideoRecord struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	ViewCount    Count `json:"view_count"`
	LikeCount    Count `json:"like_count"`
	CommentCount Count `json:"comment_count"`

	UploadDate      string   `json:"upload_date,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	IsLive          bool     `json:"is_live,omitempty"`
	Category        string   `json:"video_category,omitempty"`

	ChannelID     string `json:"channel_id,omitempty"`
	ChannelName   string `json:"channel_name,omitempty"`
	ChannelURL    string `json:"channel_url,omitempty"`
	ChannelHandle string `json:"channel_handle,omitempty"`

	ChannelSubscribers Count `json:"channel_subscriber_count"`
	ChannelVideoCount  Count `json:"channel_video_count"`
	ChannelViewCount   Count `json:"channel_view_count"`

	BusinessEmail string   `json:"business_email,omitempty"`
	SocialLinks   []string `json:"social_links,omitempty"`
	ContactSource []string `json:"contact_source,omitempty"`

	ExtractionPath string    `json:"extraction_path,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at"`
}
