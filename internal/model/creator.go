// Package model defines the core domain types shared across the pipeline.
package model

import "time"

// Provenance records which source a field value came from.
type Provenance string

const (
	SourceAPI     Provenance = "api"
	SourceScraped Provenance = "scraped"
)

// Count is a numeric statistic tagged with its provenance.
type Count struct {
	Value  int64      `json:"value"`
	Source Provenance `json:"source,omitempty"`
}

// SampleVideo is a video surfaced from a channel's uploads grid.
type SampleVideo struct {
	VideoID string `json:"video_id,omitempty"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
}

// CreatorRecord is the fused output unit for a single channel. Fields are
// populated once by fusion and are immutable afterwards except for the
// score and location estimate, which are derived and attached by later
// stages.
type CreatorRecord struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name,omitempty"`
	ChannelURL  string `json:"channel_url,omitempty"`
	Description string `json:"channel_description,omitempty"`

	Subscribers Count `json:"subscriber_count"`
	VideoCount  Count `json:"channel_video_count"`
	ViewCount   Count `json:"channel_view_count"`

	AboutText    string        `json:"about_text,omitempty"`
	SocialLinks  []string      `json:"social_links,omitempty"`
	Websites     []string      `json:"websites,omitempty"`
	Emails       []string      `json:"all_emails,omitempty"`
	ContactEmail string        `json:"contact_email_public,omitempty"`
	SampleVideos []SampleVideo `json:"sample_videos,omitempty"`

	Location LocationEstimate `json:"detected_location"`
	Score    float64          `json:"confidence_score"`

	ExtractionPath string    `json:"extraction_path,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at"`
}
