// Package engine implements connection-path discovery: bounded graph search
// over the person store, the multi-strategy resolver that sits in front of
// it, and the instrumentation that reports on both.
package engine

import (
	"context"
	"strings"

	"github.com/scrypster/warmconnector/pkg/types"
)

// SearchMode selects the resolver strategy.
type SearchMode string

// Search modes.
const (
	// ModeSmart runs graph search and falls back to fuzzy matching when no
	// path is found.
	ModeSmart SearchMode = "smart"

	// ModeAdvanced runs graph search only.
	ModeAdvanced SearchMode = "advanced"

	// ModeComprehensive runs every strategy and merges the results.
	ModeComprehensive SearchMode = "comprehensive"
)

// ParseSearchMode maps raw input to a SearchMode. Empty input selects
// ModeSmart. The second return value is false for unknown modes.
func ParseSearchMode(raw string) (SearchMode, bool) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeSmart:
		return ModeSmart, true
	case ModeAdvanced:
		return ModeAdvanced, true
	case ModeComprehensive:
		return ModeComprehensive, true
	}
	return "", false
}

// Source names the strategy (or outcome) that produced a response.
type Source string

// Response sources.
const (
	SourceGraph          Source = "graph"
	SourceFuzzy          Source = "fuzzy"
	SourceComprehensive  Source = "comprehensive"
	SourceSamePerson     Source = "same_person"
	SourceNotFound       Source = "not_found"
	SourceInvalidRequest Source = "invalid_request"
	SourceError          Source = "error"
)

// UserContext identifies who is searching.
type UserContext struct {
	FromPersonID string `json:"from_person_id,omitempty" validate:"omitempty,max=128"`
}

// SearchOptions tunes a single search.
type SearchOptions struct {
	// MaxHops bounds path length. 0 selects the configured default; values
	// above 3 are capped.
	MaxHops int `json:"max_hops,omitempty" validate:"gte=0,lte=6"`

	// MinStrength drops paths scoring below it unless IncludeWeakTies is set.
	MinStrength int `json:"min_strength,omitempty" validate:"gte=0,lte=100"`

	// IncludeWeakTies disables the MinStrength filter.
	IncludeWeakTies bool `json:"include_weak_ties,omitempty"`

	// EnableExternalEnrichment lets comprehensive searches call the external
	// enrichment provider.
	EnableExternalEnrichment bool `json:"enable_external_enrichment,omitempty"`

	// Trace attaches search trace events to the response.
	Trace bool `json:"trace,omitempty"`
}

// SearchRequest is the single entry point contract for FindConnections.
type SearchRequest struct {
	TargetName    string        `json:"target_name" validate:"required,max=200"`
	TargetCompany string        `json:"target_company,omitempty" validate:"max=200"`
	TargetTitle   string        `json:"target_title,omitempty" validate:"max=200"`
	SearchMode    SearchMode    `json:"search_mode,omitempty" validate:"omitempty,oneof=smart advanced comprehensive"`
	UserContext   UserContext   `json:"user_context"`
	Options       SearchOptions `json:"options"`
}

// SearchResponse is always well-formed, including on failure.
type SearchResponse struct {
	Found        bool                   `json:"found"`
	Paths        []types.ConnectionPath `json:"paths"`
	TotalResults int                    `json:"total_results"`

	// ProcessingTime is the wall-clock time in milliseconds measured from
	// request entry.
	ProcessingTime int64 `json:"processing_time_ms"`

	Strategy   string           `json:"strategy"`
	Source     Source           `json:"source"`
	CacheHit   bool             `json:"cache_hit"`
	Matches    []Match          `json:"matches,omitempty"`
	Enrichment []EnrichmentItem `json:"enrichment,omitempty"`

	// MatchStrategy says how Matches were found, e.g. "name_match".
	MatchStrategy string `json:"match_strategy,omitempty"`

	RequestID  string           `json:"request_id"`
	Trace      []TraceEvent     `json:"trace,omitempty"`
}

// Match is one fuzzy/attribute match for a target description.
type Match struct {
	Person types.PersonSummary `json:"person"`

	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`

	// MatchedOn lists the attributes that matched ("name", "company", "title").
	MatchedOn []string `json:"matched_on,omitempty"`
}

// Match strategies reported by matchers in MatchResult.Strategy.
const (
	MatchStrategyName         = "name_match"
	MatchStrategyTermFallback = "term_fallback"
	MatchStrategyNone         = "no_match"
)

// MatchResult is the outcome of a fuzzy match.
type MatchResult struct {
	Found    bool    `json:"found"`
	Matches  []Match `json:"matches"`
	Strategy string  `json:"strategy"`
}

// Matcher finds people from a minimal target description. It backs the
// smart-mode fallback.
type Matcher interface {
	FindByMinimalInfo(ctx context.Context, name, company, title string) (MatchResult, error)
}

// EnrichmentQuery describes the target for an external lookup.
type EnrichmentQuery struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
}

// EnrichmentItem is one result from an external enrichment provider.
type EnrichmentItem struct {
	Name       string  `json:"name"`
	Company    string  `json:"company,omitempty"`
	Title      string  `json:"title,omitempty"`
	ProfileURL string  `json:"profile_url,omitempty"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence,omitempty"`
}

// EnrichmentProvider looks a target up outside the relationship graph.
type EnrichmentProvider interface {
	Enrich(ctx context.Context, q EnrichmentQuery) ([]EnrichmentItem, error)
}

// NarrativeInput is everything a narrative generator may describe.
type NarrativeInput struct {
	Request       SearchRequest          `json:"request"`
	Found         bool                   `json:"found"`
	Source        Source                 `json:"source"`
	Paths         []types.ConnectionPath `json:"paths"`
	Matches       []Match                `json:"matches,omitempty"`
	MatchStrategy string                 `json:"match_strategy,omitempty"`
	Enrichment    []EnrichmentItem       `json:"enrichment,omitempty"`
	SourceCounts  map[Source]int         `json:"source_counts,omitempty"`
	MaxHops       int                    `json:"max_hops"`
}

// NarrativeGenerator produces a richer strategy narrative. It decorates the
// rule-based narrative and may fail freely.
type NarrativeGenerator interface {
	Narrate(ctx context.Context, in NarrativeInput, base string) (string, error)
}
