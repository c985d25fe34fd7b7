package model

// ChannelExtraction is the raw result of one page-extraction attempt for a
// channel. It is transient: fusion consumes it and it is never persisted.
type ChannelExtraction struct {
	ChannelID  string
	ChannelURL string

	AboutText   string
	Emails      []string
	SocialLinks []string
	Websites    []string

	// Subscribers as shown on the about page, 0 when the element was
	// missing or unparseable.
	SubscriberCount int64

	SampleVideos []SampleVideo
}

// VideoExtraction is the raw result of one page-extraction attempt for a
// single video, including channel-level context scraped from the same
// session.
type VideoExtraction struct {
	VideoID     string
	Title       string
	Description string

	ViewCount    int64
	LikeCount    int64
	CommentCount int64

	UploadDate      string
	DurationSeconds int
	Tags            []string
	IsLive          bool
	Category        string

	ChannelID     string
	ChannelName   string
	ChannelURL    string
	ChannelHandle string

	BusinessEmail string
	SocialLinks   []string
	ContactSource []string
}
