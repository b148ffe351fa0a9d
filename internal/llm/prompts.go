package llm

import (
	"fmt"
	"strings"

	"github.com/scrypster/warmconnector/internal/engine"
	"github.com/scrypster/warmconnector/pkg/types"
)

// NarrativeSystemPrompt frames the model as a networking advisor.
const NarrativeSystemPrompt = `You are a networking intelligence assistant. You explain how a user can reach a target person through their professional network.
Answer in two or three plain sentences. Name the best introducer when there is one. Never invent people, companies, or relationships that are not listed.`

// maxPromptPaths caps how many paths are described to the model.
const maxPromptPaths = 5

// NarrativePrompt renders a search outcome for the model. base is the
// rule-based narrative the model should improve on.
func NarrativePrompt(in engine.NarrativeInput, base string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target: %s", in.Request.TargetName)
	if in.Request.TargetCompany != "" {
		fmt.Fprintf(&b, " at %s", in.Request.TargetCompany)
	}
	if in.Request.TargetTitle != "" {
		fmt.Fprintf(&b, " (%s)", in.Request.TargetTitle)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Search source: %s; found: %t; max hops: %d\n", in.Source, in.Found, in.MaxHops)

	if len(in.Paths) > 0 {
		b.WriteString("\nConnection paths (strongest first):\n")
		for i, p := range in.Paths {
			if i == maxPromptPaths {
				fmt.Fprintf(&b, "... and %d more\n", len(in.Paths)-maxPromptPaths)
				break
			}
			fmt.Fprintf(&b, "%d. %s (hops %d, strength %d, weakest link %d)\n",
				i+1, describePath(p), p.Hops, p.TotalStrength, p.WeakestLink())
		}
	}

	if len(in.Matches) > 0 {
		b.WriteString("\nPossible matches without a known path")
		if in.MatchStrategy != "" {
			fmt.Fprintf(&b, " (matched %s)", strings.ReplaceAll(in.MatchStrategy, "_", " "))
		}
		b.WriteString(":\n")
		for i, m := range in.Matches {
			if i == maxPromptPaths {
				break
			}
			fmt.Fprintf(&b, "- %s, confidence %.0f%%\n", personLabel(m.Person), m.Confidence*100)
		}
	}

	if len(in.Enrichment) > 0 {
		b.WriteString("\nExternal results:\n")
		for i, e := range in.Enrichment {
			if i == maxPromptPaths {
				break
			}
			fmt.Fprintf(&b, "- %s", e.Name)
			if e.Company != "" {
				fmt.Fprintf(&b, " (%s)", e.Company)
			}
			fmt.Fprintf(&b, " via %s\n", e.Source)
		}
	}

	fmt.Fprintf(&b, "\nCurrent summary: %s\n", base)
	b.WriteString("\nWrite an improved summary with a concrete next step. Reply with the summary text only.")
	return b.String()
}

func describePath(p types.ConnectionPath) string {
	names := make([]string, 0, len(p.Path))
	for i, n := range p.Path {
		label := personLabel(n.PersonSummary)
		if i > 0 && n.RelationshipType != "" {
			label = fmt.Sprintf("[%s %d] %s", n.RelationshipType, n.Strength, label)
		}
		names = append(names, label)
	}
	return strings.Join(names, " -> ")
}

func personLabel(s types.PersonSummary) string {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	parts := make([]string, 0, 2)
	if s.Title != "" {
		parts = append(parts, s.Title)
	}
	if s.Company != "" {
		parts = append(parts, s.Company)
	}
	if len(parts) == 0 {
		return name
	}
	return name + " (" + strings.Join(parts, ", ") + ")"
}
