// Package matcher finds people from a minimal description (name, and
// optionally company and title) when no connection path exists. It backs
// the resolver's smart-mode fallback.
package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/scrypster/warmconnector/internal/engine"
	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

// Strategies reported in MatchResult.Strategy.
const (
	StrategyNameMatch    = engine.MatchStrategyName
	StrategyTermFallback = engine.MatchStrategyTermFallback
	StrategyNone         = engine.MatchStrategyNone
)

// Attribute weights. Weights of attributes the caller did not supply are
// left out of the normalization.
const (
	nameWeight    = 0.6
	companyWeight = 0.25
	titleWeight   = 0.15
)

// Defaults.
const (
	DefaultLimit         = 10
	DefaultMinConfidence = 0.3
	minTermLength        = 2
)

// Config tunes the matcher.
type Config struct {
	Limit         int
	MinConfidence float64
}

// AttributeMatcher scores store people against a target description.
type AttributeMatcher struct {
	store storage.PersonStore
	cfg   Config
}

// New creates a matcher over store.
func New(store storage.PersonStore, cfg Config) *AttributeMatcher {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	return &AttributeMatcher{store: store, cfg: cfg}
}

// FindByMinimalInfo implements engine.Matcher. It first looks people up by
// the whole name; when that finds nobody it looks each name term up
// separately and scores the union.
func (m *AttributeMatcher) FindByMinimalInfo(ctx context.Context, name, company, title string) (engine.MatchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return engine.MatchResult{Strategy: StrategyNone, Matches: []engine.Match{}}, nil
	}

	strategy := StrategyNameMatch
	people, err := m.store.FindPeople(ctx, name, "")
	if err != nil {
		return engine.MatchResult{}, fmt.Errorf("matcher: find by name: %w", err)
	}

	if len(people) == 0 {
		strategy = StrategyTermFallback
		seen := make(map[string]bool)
		for _, term := range m.terms(name) {
			found, err := m.store.FindPeople(ctx, term, "")
			if err != nil {
				return engine.MatchResult{}, fmt.Errorf("matcher: find by term %q: %w", term, err)
			}
			for _, p := range found {
				if !seen[p.ID] {
					seen[p.ID] = true
					people = append(people, p)
				}
			}
		}
	}

	matches := make([]engine.Match, 0, len(people))
	for _, p := range people {
		match := m.score(p, name, company, title)
		if match.Confidence >= m.cfg.MinConfidence {
			matches = append(matches, match)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Person.Name != b.Person.Name {
			return a.Person.Name < b.Person.Name
		}
		return a.Person.ID < b.Person.ID
	})
	if len(matches) > m.cfg.Limit {
		matches = matches[:m.cfg.Limit]
	}
	if len(matches) == 0 {
		strategy = StrategyNone
	}

	return engine.MatchResult{Found: len(matches) > 0, Matches: matches, Strategy: strategy}, nil
}

// score computes a weighted confidence in [0, 1].
func (m *AttributeMatcher) score(p *types.Person, name, company, title string) engine.Match {
	match := engine.Match{Person: p.Summary()}

	total, weights := 0.0, nameWeight
	ns := m.similarity(name, p.Name)
	total += nameWeight * ns
	if ns >= 0.5 {
		match.MatchedOn = append(match.MatchedOn, "name")
	}

	if company = strings.TrimSpace(company); company != "" {
		weights += companyWeight
		cs := m.similarity(company, p.Company)
		total += companyWeight * cs
		if cs >= 0.5 {
			match.MatchedOn = append(match.MatchedOn, "company")
		}
	}
	if title = strings.TrimSpace(title); title != "" {
		weights += titleWeight
		ts := m.similarity(title, p.Title)
		total += titleWeight * ts
		if ts >= 0.5 {
			match.MatchedOn = append(match.MatchedOn, "title")
		}
	}

	match.Confidence = roundTo(total/weights, 3)
	return match
}

// similarity compares a query attribute with a stored one: 1 for an exact
// case-folded match, 0.85 for containment, otherwise the better of term
// overlap and normalized edit distance.
func (m *AttributeMatcher) similarity(query, value string) float64 {
	q := fold(strings.TrimSpace(query))
	v := fold(strings.TrimSpace(value))
	if q == "" || v == "" {
		return 0
	}
	if q == v {
		return 1
	}
	if strings.Contains(v, q) || strings.Contains(q, v) {
		return 0.85
	}

	overlap := termOverlap(strings.Fields(q), strings.Fields(v))
	longest := len([]rune(q))
	if n := len([]rune(v)); n > longest {
		longest = n
	}
	edit := 1 - float64(levenshtein.ComputeDistance(q, v))/float64(longest)
	if edit < 0 {
		edit = 0
	}

	if overlap > edit {
		return 0.8 * overlap
	}
	return 0.8 * edit
}

// terms splits a name into distinct searchable terms.
func (m *AttributeMatcher) terms(name string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range strings.Fields(fold(name)) {
		t = strings.Trim(t, ".,'\"")
		if len([]rune(t)) < minTermLength || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// termOverlap is the fraction of query terms present in value terms.
func termOverlap(query, value []string) float64 {
	if len(query) == 0 {
		return 0
	}
	have := make(map[string]bool, len(value))
	for _, v := range value {
		have[v] = true
	}
	hits := 0
	for _, q := range query {
		if have[q] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

var _ engine.Matcher = (*AttributeMatcher)(nil)
