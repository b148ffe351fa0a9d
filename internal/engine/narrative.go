package engine

import (
	"fmt"
	"strings"

	"github.com/scrypster/warmconnector/pkg/types"
)

// Fixed narratives for outcomes that carry no results.
const (
	NarrativeInvalidRequest = "Target name is required to search for connections."
	NarrativeSearchFailed   = "Search failed - please try again."
	NarrativeNotFound       = "Target person not found. Check the spelling or add a company to narrow the search."
	NarrativeSamePerson     = "That's you - no introduction needed."
)

// RuleNarrative is the deterministic strategy text for a search outcome. It
// never depends on any external collaborator.
func RuleNarrative(in NarrativeInput) string {
	switch in.Source {
	case SourceInvalidRequest:
		return NarrativeInvalidRequest
	case SourceError:
		return NarrativeSearchFailed
	case SourceNotFound:
		return NarrativeNotFound
	case SourceSamePerson:
		return NarrativeSamePerson
	case SourceFuzzy:
		return fuzzyNarrative(in)
	case SourceComprehensive:
		return comprehensiveNarrative(in)
	}
	return graphNarrative(in)
}

func graphNarrative(in NarrativeInput) string {
	if len(in.Paths) == 0 {
		return fmt.Sprintf("No connection pathways found within %d %s of separation. Try increasing max hops or including weak ties.",
			in.MaxHops, plural(in.MaxHops, "degree", "degrees"))
	}

	deepest := 0
	for _, p := range in.Paths {
		if p.Hops > deepest {
			deepest = p.Hops
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d connection %s with up to %d %s of separation; prioritize direct connections first.",
		len(in.Paths), plural(len(in.Paths), "pathway", "pathways"), deepest, plural(deepest, "degree", "degrees"))
	if next := nextAction(in.Paths[0]); next != "" {
		b.WriteString(" ")
		b.WriteString(next)
	}
	return b.String()
}

// nextAction recommends how to use the best-ranked path.
func nextAction(p types.ConnectionPath) string {
	target := displayName(p.Target())
	switch {
	case p.Hops == 1:
		return fmt.Sprintf("You already know %s (strength %d); reach out directly.", target, p.TotalStrength)
	case p.Hops >= 2 && len(p.Path) > 1:
		return fmt.Sprintf("Ask %s for an introduction to %s (path strength %d).", displayName(p.Path[1].PersonSummary), target, p.TotalStrength)
	}
	return ""
}

func fuzzyNarrative(in NarrativeInput) string {
	name := in.Request.TargetName
	if len(in.Matches) == 0 {
		return fmt.Sprintf("No connection pathways or close matches found for %s.", name)
	}
	best := in.Matches[0].Confidence
	for _, m := range in.Matches[1:] {
		if m.Confidence > best {
			best = m.Confidence
		}
	}
	return fmt.Sprintf("No connection pathways found; %d possible %s for %s %s (best confidence %.0f%%). Confirm the right person before asking for an introduction.",
		len(in.Matches), plural(len(in.Matches), "match", "matches"), name, matchMethod(in.MatchStrategy), best*100)
}

// matchMethod phrases a matcher strategy for narratives.
func matchMethod(strategy string) string {
	switch strategy {
	case MatchStrategyName:
		return "by name"
	case MatchStrategyTermFallback:
		return "by partial name terms"
	}
	return "by attribute matching"
}

func comprehensiveNarrative(in NarrativeInput) string {
	graph := in.SourceCounts[SourceGraph]
	fuzzy := in.SourceCounts[SourceFuzzy]
	external := in.SourceCounts[sourceEnrichment]
	total := graph + fuzzy + external
	if total == 0 {
		return fmt.Sprintf("Comprehensive search found no pathways, matches, or external results for %s.", in.Request.TargetName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Comprehensive search combined %d %s: %d from graph pathfinding, %d from attribute matching, %d from external enrichment.",
		total, plural(total, "result", "results"), graph, fuzzy, external)
	if len(in.Paths) > 0 {
		b.WriteString(" ")
		b.WriteString(nextAction(in.Paths[0]))
	} else if fuzzy > 0 {
		b.WriteString(" Confirm the right person before asking for an introduction.")
	}
	return strings.TrimSpace(b.String())
}

// sourceEnrichment only appears in comprehensive source counts.
const sourceEnrichment Source = "enrichment"

func displayName(s types.PersonSummary) string {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	if s.Company != "" {
		return fmt.Sprintf("%s (%s)", name, s.Company)
	}
	return name
}
