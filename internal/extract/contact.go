package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	urlRe   = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
)

// Addresses matching any of these fragments are platform noise, not
// creator contacts.
var emailDenylist = []string{"noreply", "example", "test", "@youtube.com", "@google.com"}

// Domains that classify an external link as a social profile rather than
// a website.
var socialDomains = []string{
	"twitter.com",
	"x.com",
	"instagram.com",
	"facebook.com",
	"tiktok.com",
	"linkedin.com",
	"twitch.tv",
}

// ExtractEmails returns the plausible contact addresses found in text,
// denylist-filtered and deduplicated in first-seen order.
func ExtractEmails(text string) []string {
	if text == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, e := range emailRe.FindAllString(text, -1) {
		lower := strings.ToLower(e)
		if deniedEmail(lower) {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func deniedEmail(lower string) bool {
	for _, frag := range emailDenylist {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// ExtractURLs returns external links found in text, with trailing
// punctuation stripped, YouTube self-links dropped, and duplicates
// removed in first-seen order.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, u := range urlRe.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?)")
		if strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be") {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// DecodeRedirect unwraps a YouTube outbound-redirect URL
// (youtube.com/redirect?...&q=<escaped destination>) to its destination.
// Anything else is returned unchanged.
func DecodeRedirect(raw string) string {
	if !strings.Contains(raw, "youtube.com/redirect") && !strings.Contains(raw, "youtube.com/attribution_link") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if q := u.Query().Get("q"); q != "" {
		if dest, err := url.QueryUnescape(q); err == nil {
			return dest
		}
		return u.Query().Get("q")
	}
	return raw
}

// SplitLinks partitions external links into social profiles and plain
// websites, preserving order within each group. Redirect wrappers are
// decoded first and trailing slashes trimmed from social links.
func SplitLinks(links []string) (social, websites []string) {
	for _, link := range links {
		dest := DecodeRedirect(link)
		if dest == "" {
			continue
		}
		if isSocial(dest) {
			social = append(social, strings.TrimRight(dest, "/"))
		} else {
			websites = append(websites, dest)
		}
	}
	return social, websites
}

func isSocial(link string) bool {
	lower := strings.ToLower(link)
	for _, d := range socialDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}
