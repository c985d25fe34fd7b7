package location

import (
	"net/url"
	"slices"
	"strings"

	"github.com/reachlab/creator-scout/internal/model"
)

// Infer scans text for country aliases and city names. Each country with
// an alias hit contributes 10 (first alias wins, no double counting per
// country); each country with a city hit contributes 15 and sets city and
// country if still unset. A target hint equal to the matched city adds 20,
// and a hint equal to the found country adds another 20 (a two-letter
// US/USA hint counts as country USA). The final confidence is capped at
// ConfidenceCap.
func (e *Engine) Infer(text, targetHint string) model.LocationEstimate {
	var est model.LocationEstimate
	if text == "" {
		return est
	}

	lower := fold(text)
	hintLower := fold(targetHint)
	conf := 0

	for _, c := range e.countries {
		for _, alias := range c.loweredAliases {
			if strings.Contains(lower, alias) {
				if est.Country == "" {
					est.Country = c.Country
				}
				conf += 10
				break
			}
		}

		for i, city := range c.loweredCities {
			if strings.Contains(lower, city) {
				if est.City == "" {
					est.City = c.Cities[i]
				}
				if est.Country == "" {
					est.Country = c.Country
				}
				conf += 15
				if targetHint != "" && city == hintLower {
					conf += 20
				}
				break
			}
		}
	}

	if targetHint != "" && est.Country != "" {
		upper := strings.ToUpper(targetHint)
		switch {
		case (upper == "US" || upper == "USA") && est.Country == "USA":
			conf += 20
		case strings.EqualFold(targetHint, est.Country):
			conf += 20
		}
	}

	if conf > ConfidenceCap {
		conf = ConfidenceCap
	}
	est.Confidence = conf
	return est
}

// Aggregate combines estimates from the about text (full weight), each
// sample-video title (half weight), and a domain-TLD country guess (fixed
// +5, no city). Confidence accumulates across sources and the shared cap
// is applied once at the end. Sources are recorded in the order first
// observed, each at most once.
func (e *Engine) Aggregate(aboutText string, videoTitles []string, websites []string, targetHint string) model.LocationEstimate {
	var agg model.LocationEstimate
	var conf float64

	if aboutText != "" {
		about := e.Infer(aboutText, targetHint)
		if about.Country != "" {
			agg.Country = about.Country
			conf += float64(about.Confidence)
			agg.Sources = append(agg.Sources, model.LocationSourceAbout)
		}
		if about.City != "" {
			agg.City = about.City
		}
	}

	for _, title := range videoTitles {
		v := e.Infer(title, targetHint)
		if v.Country == "" && v.City == "" {
			continue
		}
		if agg.Country == "" {
			agg.Country = v.Country
		}
		if agg.City == "" {
			agg.City = v.City
		}
		conf += float64(v.Confidence) * 0.5
		if !slices.Contains(agg.Sources, model.LocationSourceVideos) {
			agg.Sources = append(agg.Sources, model.LocationSourceVideos)
		}
	}

	for _, site := range websites {
		country := e.CountryFromDomain(site)
		if country == "" || agg.Country != "" {
			continue
		}
		agg.Country = country
		conf += 5
		if !slices.Contains(agg.Sources, model.LocationSourceDomain) {
			agg.Sources = append(agg.Sources, model.LocationSourceDomain)
		}
	}

	if conf > ConfidenceCap {
		conf = ConfidenceCap
	}
	agg.Confidence = int(conf)
	return agg
}

// CountryFromDomain guesses a country from a URL's ccTLD. Longer suffixes
// are listed before their overlaps in the table, so .co.uk wins over .uk.
func (e *Engine) CountryFromDomain(rawURL string) string {
	host := strings.ToLower(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	host = strings.TrimSuffix(host, "/")

	for _, t := range e.tlds {
		if strings.HasSuffix(host, t.Suffix) {
			return t.Country
		}
	}
	return ""
}
