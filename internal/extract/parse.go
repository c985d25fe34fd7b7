package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var countRe = regexp.MustCompile(`([\d][\d.,]*)([KMB])?`)

var countMultipliers = map[string]float64{"K": 1e3, "M": 1e6, "B": 1e9}

// ParseCount parses a human-formatted count such as "1.2M views",
// "1,234 likes", or "987 subscribers". A K/M/B suffix must directly
// follow the number; letters in trailing words are not treated as
// multipliers. Returns false when no number is found.
func ParseCount(text string) (int64, bool) {
	m := countRe.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return 0, false
	}

	num := strings.ReplaceAll(m[1], ",", "")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if mult, ok := countMultipliers[m[2]]; ok {
		f *= mult
	}
	return int64(f), true
}
