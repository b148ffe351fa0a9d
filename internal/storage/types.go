package storage

import (
	"errors"
	"sort"
	"strings"

	"github.com/scrypster/warmconnector/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// MaxPeoplePageSize bounds FindPeople results.
const MaxPeoplePageSize = 100

// DefaultNeighborLimit bounds FindNeighbors when the caller passes <= 0.
const DefaultNeighborLimit = 25

// TwoHopEdge describes a mutual connection M between a source and a target.
type TwoHopEdge struct {
	// MiddleID is the intermediate person.
	MiddleID string

	// Strength1 is the tie strength between the source and M.
	Strength1 int

	// Strength2 is the tie strength between M and the target.
	Strength2 int

	// Type1 and Type2 are the relationship types of the two legs.
	Type1 types.RelationshipType
	Type2 types.RelationshipType
}

// Neighbor is a person directly tied to another.
type Neighbor struct {
	PersonID string
	Type     types.RelationshipType
	Strength int
}

// EscapeLike escapes LIKE wildcards so user input matches literally.
// The escape character is backslash; queries must declare ESCAPE '\'.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// DedupeIDs removes blanks and duplicates while preserving order.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// CollapseTwoHop merges raw leg rows so each middle person appears once,
// keeping the strongest edge on each leg. Output is sorted by MiddleID.
func CollapseTwoHop(rows []TwoHopEdge) []TwoHopEdge {
	byMid := make(map[string]*TwoHopEdge, len(rows))
	order := make([]string, 0, len(rows))
	for _, r := range rows {
		cur, ok := byMid[r.MiddleID]
		if !ok {
			r := r
			byMid[r.MiddleID] = &r
			order = append(order, r.MiddleID)
			continue
		}
		if strongerLeg(r.Strength1, r.Type1, cur.Strength1, cur.Type1) {
			cur.Strength1, cur.Type1 = r.Strength1, r.Type1
		}
		if strongerLeg(r.Strength2, r.Type2, cur.Strength2, cur.Type2) {
			cur.Strength2, cur.Type2 = r.Strength2, r.Type2
		}
	}

	sort.Strings(order)
	out := make([]TwoHopEdge, 0, len(order))
	for _, id := range order {
		out = append(out, *byMid[id])
	}
	return out
}

// CollapseNeighbors keeps the strongest tie per person, orders strongest
// first (ties by id) and truncates to limit. limit <= 0 uses
// DefaultNeighborLimit.
func CollapseNeighbors(rows []Neighbor, limit int) []Neighbor {
	if limit <= 0 {
		limit = DefaultNeighborLimit
	}
	best := make(map[string]Neighbor, len(rows))
	for _, r := range rows {
		cur, ok := best[r.PersonID]
		if !ok || strongerLeg(r.Strength, r.Type, cur.Strength, cur.Type) {
			best[r.PersonID] = r
		}
	}

	out := make([]Neighbor, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].PersonID < out[j].PersonID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// strongerLeg orders edges by strength, breaking ties by type name so the
// choice does not depend on row order.
func strongerLeg(s int, t types.RelationshipType, curS int, curT types.RelationshipType) bool {
	if s != curS {
		return s > curS
	}
	return t < curT
}
