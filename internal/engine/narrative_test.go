package engine

import (
	"strings"
	"testing"

	"github.com/scrypster/warmconnector/pkg/types"
)

func TestRuleNarrative(t *testing.T) {
	direct := types.ConnectionPath{
		Hops:          1,
		TotalStrength: 85,
		Path: []types.PathNode{
			{PersonSummary: types.PersonSummary{ID: "demo-user-001", Name: "Alex Demo"}},
			{PersonSummary: types.PersonSummary{ID: "person-42", Name: "Jane Doe", Company: "Acme Corp"}, Strength: 85},
		},
	}
	twoHop := types.ConnectionPath{
		Hops:          2,
		TotalStrength: 63,
		Path: []types.PathNode{
			{PersonSummary: types.PersonSummary{ID: "a"}},
			{PersonSummary: types.PersonSummary{ID: "m1", Name: "Max"}},
			{PersonSummary: types.PersonSummary{ID: "b", Name: "Bob"}},
		},
	}

	tests := []struct {
		name string
		in   NarrativeInput
		want []string
	}{
		{
			name: "invalid request",
			in:   NarrativeInput{Source: SourceInvalidRequest},
			want: []string{NarrativeInvalidRequest},
		},
		{
			name: "error",
			in:   NarrativeInput{Source: SourceError},
			want: []string{"Search failed - please try again."},
		},
		{
			name: "not found",
			in:   NarrativeInput{Source: SourceNotFound},
			want: []string{"Target person not found"},
		},
		{
			name: "same person",
			in:   NarrativeInput{Source: SourceSamePerson},
			want: []string{NarrativeSamePerson},
		},
		{
			name: "no paths",
			in:   NarrativeInput{Source: SourceGraph, MaxHops: 2},
			want: []string{"No connection pathways found within 2 degrees of separation"},
		},
		{
			name: "direct path",
			in:   NarrativeInput{Source: SourceGraph, Found: true, Paths: []types.ConnectionPath{direct}},
			want: []string{
				"Found 1 connection pathway with up to 1 degree of separation; prioritize direct connections first.",
				"You already know Jane Doe (Acme Corp) (strength 85); reach out directly.",
			},
		},
		{
			name: "introduction",
			in:   NarrativeInput{Source: SourceGraph, Found: true, Paths: []types.ConnectionPath{twoHop, twoHop}},
			want: []string{
				"Found 2 connection pathways with up to 2 degrees",
				"Ask Max for an introduction to Bob (path strength 63).",
			},
		},
		{
			name: "fuzzy without matches",
			in:   NarrativeInput{Source: SourceFuzzy, Request: SearchRequest{TargetName: "Sam"}},
			want: []string{"No connection pathways or close matches found for Sam."},
		},
		{
			name: "fuzzy name matches",
			in: NarrativeInput{
				Source:        SourceFuzzy,
				Request:       SearchRequest{TargetName: "Sam"},
				Matches:       []Match{{Confidence: 0.6}, {Confidence: 0.9}},
				MatchStrategy: MatchStrategyName,
			},
			want: []string{"2 possible matches for Sam by name (best confidence 90%)"},
		},
		{
			name: "fuzzy term fallback",
			in: NarrativeInput{
				Source:        SourceFuzzy,
				Request:       SearchRequest{TargetName: "Sam"},
				Matches:       []Match{{Confidence: 0.4}},
				MatchStrategy: MatchStrategyTermFallback,
			},
			want: []string{"1 possible match for Sam by partial name terms"},
		},
		{
			name: "fuzzy unknown strategy",
			in: NarrativeInput{
				Source:  SourceFuzzy,
				Request: SearchRequest{TargetName: "Sam"},
				Matches: []Match{{Confidence: 0.5}},
			},
			want: []string{"for Sam by attribute matching"},
		},
		{
			name: "comprehensive empty",
			in:   NarrativeInput{Source: SourceComprehensive, Request: SearchRequest{TargetName: "Sam"}},
			want: []string{"Comprehensive search found no pathways"},
		},
		{
			name: "comprehensive with matches only",
			in: NarrativeInput{
				Source:       SourceComprehensive,
				SourceCounts: map[Source]int{SourceFuzzy: 2, sourceEnrichment: 1},
			},
			want: []string{
				"combined 3 results: 0 from graph pathfinding, 2 from attribute matching, 1 from external enrichment.",
				"Confirm the right person",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RuleNarrative(tt.in)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("narrative %q does not contain %q", got, w)
				}
			}
			if again := RuleNarrative(tt.in); again != got {
				t.Error("narrative must be deterministic")
			}
		})
	}
}
