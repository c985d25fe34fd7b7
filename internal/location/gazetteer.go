// Package location infers (country, city, confidence) estimates from free
// text using a fixed reference gazetteer.
package location

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ConfidenceCap bounds every estimate's confidence. The same cap applies
// to the multi-source aggregation, applied once at the end; it is not
// recomputed per source.
const ConfidenceCap = 20

//go:embed gazetteer.yaml
var gazetteerYAML []byte

type countryEntry struct {
	Country string   `yaml:"country"`
	Aliases []string `yaml:"aliases"`
	Cities  []string `yaml:"cities"`

	loweredAliases []string
	loweredCities  []string
}

type tldEntry struct {
	Suffix  string `yaml:"suffix"`
	Country string `yaml:"country"`
}

type gazetteer struct {
	Countries []countryEntry `yaml:"countries"`
	TLDs      []tldEntry     `yaml:"tlds"`
}

// Engine scans text against the gazetteer. The country list is an ordered
// sequence, not a keyed map: ties between equally-plausible countries
// resolve to the first entry in declaration order, and that ordering must
// be preserved for reproducibility.
type Engine struct {
	countries []countryEntry
	tlds      []tldEntry
}

// NewEngine parses the embedded gazetteer and precomputes lowered match
// strings.
func NewEngine() (*Engine, error) {
	var g gazetteer
	if err := yaml.Unmarshal(gazetteerYAML, &g); err != nil {
		return nil, eris.Wrap(err, "location: parse gazetteer")
	}
	if len(g.Countries) == 0 {
		return nil, eris.New("location: empty gazetteer")
	}

	for i := range g.Countries {
		c := &g.Countries[i]
		c.loweredAliases = lowerAll(c.Aliases)
		c.loweredCities = lowerAll(c.Cities)
	}

	return &Engine{countries: g.Countries, tlds: g.TLDs}, nil
}

// MustEngine is NewEngine for the embedded table, where a parse failure is
// a programming error.
func MustEngine() *Engine {
	e, err := NewEngine()
	if err != nil {
		panic(err)
	}
	return e
}

// fold lowercases s with full Unicode case mapping, so aliases like
// "España" and cities like "São Paulo" match regardless of input casing.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fold(s)
	}
	return out
}
