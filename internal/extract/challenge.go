package extract

import (
	"net/http"
	"strings"
)

// Challenge page markers. These are an explicit pre-check run before any
// field extraction; a hit is reported as a ChallengeError and fed back to
// the proxy pool like any other transport failure.
var challengeMarkers = []string{
	"recaptcha",
	"g-recaptcha",
	"hcaptcha",
	"unusual traffic",
	"consent.youtube.com/m?continue",
	"our systems have detected",
}

// DetectChallenge checks a response for signs of a bot challenge or
// consent interstitial. The status-code check catches outright blocks;
// the body scan catches challenges served with a 200.
func DetectChallenge(resp *http.Response, body []byte) (bool, string) {
	if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) {
		return true, http.StatusText(resp.StatusCode)
	}

	lower := strings.ToLower(string(body))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true, marker
		}
	}
	return false, ""
}
