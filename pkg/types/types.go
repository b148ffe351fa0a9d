// Package types defines the core data structures for WarmConnector path
// discovery: people, the directed relationship edges between them, and the
// ranked connection paths derived from the relationship graph.
package types

import "strings"

// RelationshipType classifies why two people are connected.
type RelationshipType string

// Relationship type constants. ALUMNI is accepted on input as an alias for
// EDUCATION; see NormalizeRelationshipType.
const (
	RelationshipCoworker  RelationshipType = "COWORKER"
	RelationshipEducation RelationshipType = "EDUCATION"
	RelationshipFamily    RelationshipType = "FAMILY"
	RelationshipGreekLife RelationshipType = "GREEK_LIFE"
	RelationshipHometown  RelationshipType = "HOMETOWN"
	RelationshipSocial    RelationshipType = "SOCIAL"
)

// Strength bounds for edges and paths.
const (
	MinStrength = 0
	MaxStrength = 100
)

// relationshipAliases maps accepted input spellings to canonical types.
var relationshipAliases = map[string]RelationshipType{
	"COWORKER":   RelationshipCoworker,
	"EDUCATION":  RelationshipEducation,
	"ALUMNI":     RelationshipEducation,
	"FAMILY":     RelationshipFamily,
	"GREEK_LIFE": RelationshipGreekLife,
	"GREEKLIFE":  RelationshipGreekLife,
	"HOMETOWN":   RelationshipHometown,
	"SOCIAL":     RelationshipSocial,
}

// NormalizeRelationshipType maps a raw type string (any case, ALUMNI alias)
// to its canonical RelationshipType. The second return value is false when
// the type is not recognised.
func NormalizeRelationshipType(raw string) (RelationshipType, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	rt, ok := relationshipAliases[key]
	return rt, ok
}

// IsValidRelationshipType reports whether relType is one of the canonical
// relationship types. Aliases are not canonical.
func IsValidRelationshipType(relType RelationshipType) bool {
	switch relType {
	case RelationshipCoworker, RelationshipEducation, RelationshipFamily,
		RelationshipGreekLife, RelationshipHometown, RelationshipSocial:
		return true
	}
	return false
}

// ClampStrength bounds s to [MinStrength, MaxStrength].
func ClampStrength(s int) int {
	if s < MinStrength {
		return MinStrength
	}
	if s > MaxStrength {
		return MaxStrength
	}
	return s
}
