package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/reachlab/creator-scout/internal/model"
)

// Score rates how well a fused record matches the query and optional
// location hint. Components: text relevance 0-40, popularity 0-30,
// location match bonus plus the estimate's own confidence, contact
// availability 0-10. Rounded to two decimals.
func Score(rec model.CreatorRecord, query, targetHint string) float64 {
	score := 0.0

	q := strings.ToLower(query)
	title := strings.ToLower(rec.ChannelName)
	desc := strings.ToLower(rec.Description)
	about := strings.ToLower(rec.AboutText)

	switch {
	case q != "" && strings.Contains(title, q):
		score += 40
	case q != "" && strings.Contains(desc, q):
		score += 30
	case q != "" && strings.Contains(about, q):
		score += 20
	case q != "":
		words := strings.Fields(q)
		matched := 0
		for _, w := range words {
			if strings.Contains(title, w) || strings.Contains(desc, w) {
				matched++
			}
		}
		if len(words) > 0 {
			score += float64(matched) / float64(len(words)) * 20
		}
	}

	if subs := rec.Subscribers.Value; subs > 0 {
		score += math.Min(30, math.Log10(float64(subs))*5)
	}

	if targetHint != "" {
		score += locationScore(rec.Location, targetHint)
	}

	if rec.ContactEmail != "" {
		score += 5
	}
	if len(rec.SocialLinks) > 0 {
		score += 5
	}

	return math.Round(score*100) / 100
}

// locationScore awards the match bonus and, on top, the estimate's own
// confidence. A country that mismatches the hint still earns 5, and the
// confidence is added either way; this double reward for weak signals
// matches long-observed ranking behavior and is kept pending product
// review.
func locationScore(loc model.LocationEstimate, targetHint string) float64 {
	score := 0.0
	hintUpper := strings.ToUpper(targetHint)

	if loc.Country != "" {
		switch {
		case (hintUpper == "US" || hintUpper == "USA") && loc.Country == "USA":
			score += 20
		case strings.EqualFold(loc.Country, targetHint):
			score += 20
		default:
			score += 5
		}
	}

	if loc.City != "" && strings.EqualFold(loc.City, targetHint) {
		score += 20
	}

	score += math.Min(20, float64(loc.Confidence))
	return score
}

// Rank sorts records by descending score, keeping encounter order for
// ties.
func Rank(records []model.CreatorRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
}
