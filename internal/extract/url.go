package extract

import (
	"regexp"
	"strings"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

var relativeWatchRe = regexp.MustCompile(`/watch\?v=([a-zA-Z0-9_-]{11})`)

// VideoIDFromURL extracts the 11-character video id from a watch, short,
// embed, or youtu.be URL. Relative /watch?v= paths are accepted too.
func VideoIDFromURL(raw string) string {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	if strings.HasPrefix(raw, "/watch?v=") {
		if m := relativeWatchRe.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsSearchURL reports whether raw is a YouTube search-results URL.
func IsSearchURL(raw string) bool {
	return strings.Contains(raw, "youtube.com/results") && strings.Contains(raw, "search_query=")
}
