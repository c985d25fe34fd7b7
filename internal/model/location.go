package model

// Location source tags, recorded in the order first observed.
const (
	LocationSourceAbout  = "about_page"
	LocationSourceVideos = "video_titles"
	LocationSourceDomain = "domain"
)

// LocationEstimate is the result of location inference over free text.
// Confidence is capped at 20 even when multiple signals fire.
type LocationEstimate struct {
	Country    string   `json:"country,omitempty"`
	City       string   `json:"city,omitempty"`
	Confidence int      `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}
