// Package lexicon holds the domain vocabulary used to rewrite search queries:
// synonym expansions for mechanical terms and the brand keyword table.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Expansion appends Terms to a query containing Stem.
type Expansion struct {
	Stem  string `yaml:"stem"`
	Terms string `yaml:"terms"`
}

type file struct {
	Expansions []Expansion          `yaml:"expansions"`
	Brands     map[string][]string `yaml:"brands"`
}

type brand struct {
	keyword string
	terms   []string
}

// Lexicon is immutable after construction and safe for concurrent use.
type Lexicon struct {
	expansions []Expansion
	brands     []brand
}

// Default returns the built-in lexicon.
func Default() *Lexicon {
	l, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("lexicon: embedded default is invalid: %v", err))
	}
	return l
}

// Load reads a lexicon file, or returns the default when path is empty.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return l, nil
}

// Parse decodes a YAML lexicon.
func Parse(data []byte) (*Lexicon, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	l := &Lexicon{}
	for i, e := range f.Expansions {
		stem := strings.ToLower(strings.TrimSpace(e.Stem))
		terms := strings.TrimSpace(e.Terms)
		if stem == "" || terms == "" {
			return nil, fmt.Errorf("expansion %d: stem and terms are required", i)
		}
		l.expansions = append(l.expansions, Expansion{Stem: stem, Terms: terms})
	}

	for kw, terms := range f.Brands {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || len(terms) == 0 {
			return nil, fmt.Errorf("brand %q: keyword and terms are required", kw)
		}
		b := brand{keyword: kw}
		for _, t := range terms {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				b.terms = append(b.terms, t)
			}
		}
		l.brands = append(l.brands, b)
	}
	sort.Slice(l.brands, func(i, j int) bool { return l.brands[i].keyword < l.brands[j].keyword })

	return l, nil
}

// Expand returns the query with synonym terms appended for every matching
// stem, or the query unchanged when nothing matches.
func (l *Lexicon) Expand(query string) string {
	lower := strings.ToLower(query)
	var extra []string
	for _, e := range l.expansions {
		if strings.Contains(lower, e.Stem) {
			extra = append(extra, e.Terms)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}

// BrandTerms returns the filename terms for every brand keyword mentioned in
// the query, deduplicated and sorted.
func (l *Lexicon) BrandTerms(query string) []string {
	lower := strings.ToLower(query)
	seen := make(map[string]struct{})
	var out []string
	for _, b := range l.brands {
		if !strings.Contains(lower, b.keyword) {
			continue
		}
		for _, t := range b.terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Size reports the number of expansion stems and brand keywords.
func (l *Lexicon) Size() (expansions, brands int) {
	return len(l.expansions), len(l.brands)
}
