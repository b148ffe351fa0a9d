package types

import (
	"encoding/json"
	"fmt"
)

// RelationshipEdge is a directed, typed, weighted edge between two people.
// An undirected tie may be stored as two edges (A->B and B->A); readers must
// not assume the reverse edge exists.
type RelationshipEdge struct {
	FromID   string           `json:"from_id"`
	ToID     string           `json:"to_id"`
	Type     RelationshipType `json:"type"`
	Strength int              `json:"strength"` // 0-100, higher is a stronger tie
	Evidence Evidence         `json:"evidence"`
}

// Validate checks the edge's structural invariants.
func (e *RelationshipEdge) Validate() error {
	if e.FromID == "" || e.ToID == "" {
		return fmt.Errorf("relationship edge: from_id and to_id are required")
	}
	if e.FromID == e.ToID {
		return fmt.Errorf("relationship edge: self-loop on %s", e.FromID)
	}
	if !IsValidRelationshipType(e.Type) {
		return fmt.Errorf("relationship edge: unknown type %q", e.Type)
	}
	if e.Strength < MinStrength || e.Strength > MaxStrength {
		return fmt.Errorf("relationship edge: strength %d outside [%d, %d]", e.Strength, MinStrength, MaxStrength)
	}
	return nil
}

// EvidenceKind names which Evidence variant is populated.
type EvidenceKind string

// Evidence kinds, one per relationship type.
const (
	EvidenceNone      EvidenceKind = ""
	EvidenceCoworker  EvidenceKind = "coworker"
	EvidenceEducation EvidenceKind = "education"
	EvidenceFamily    EvidenceKind = "family"
	EvidenceGreekLife EvidenceKind = "greek_life"
	EvidenceHometown  EvidenceKind = "hometown"
	EvidenceSocial    EvidenceKind = "social"
)

// CoworkerEvidence records a shared employer.
type CoworkerEvidence struct {
	Company string `json:"company"`
	Overlap string `json:"overlap,omitempty"` // e.g. "2019-2022"
}

// EducationEvidence records a shared school.
type EducationEvidence struct {
	School string `json:"school"`
	Years  string `json:"years,omitempty"`
}

// FamilyEvidence records a family relation.
type FamilyEvidence struct {
	Relation string `json:"relation"`
}

// GreekLifeEvidence records a shared fraternity or sorority.
type GreekLifeEvidence struct {
	Organization string `json:"organization"`
	Chapter      string `json:"chapter,omitempty"`
}

// HometownEvidence records a shared hometown.
type HometownEvidence struct {
	Town string `json:"town"`
}

// SocialEvidence records a social-platform tie.
type SocialEvidence struct {
	Platform string `json:"platform"`
	Context  string `json:"context,omitempty"`
}

// Evidence explains why an edge was inferred. It is a tagged union: Kind
// names the single populated variant.
type Evidence struct {
	Kind      EvidenceKind
	Coworker  *CoworkerEvidence
	Education *EducationEvidence
	Family    *FamilyEvidence
	GreekLife *GreekLifeEvidence
	Hometown  *HometownEvidence
	Social    *SocialEvidence
}

// EvidenceKindFor returns the evidence kind that matches a relationship type.
func EvidenceKindFor(rt RelationshipType) EvidenceKind {
	switch rt {
	case RelationshipCoworker:
		return EvidenceCoworker
	case RelationshipEducation:
		return EvidenceEducation
	case RelationshipFamily:
		return EvidenceFamily
	case RelationshipGreekLife:
		return EvidenceGreekLife
	case RelationshipHometown:
		return EvidenceHometown
	case RelationshipSocial:
		return EvidenceSocial
	}
	return EvidenceNone
}

// IsEmpty reports whether no variant is populated.
func (e Evidence) IsEmpty() bool {
	return e.Kind == EvidenceNone
}

// evidenceWire is the JSON envelope: {"kind": "...", "data": {...}}.
type evidenceWire struct {
	Kind EvidenceKind    `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the populated variant inside a kind envelope.
func (e Evidence) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Kind {
	case EvidenceNone:
		return []byte("null"), nil
	case EvidenceCoworker:
		payload = e.Coworker
	case EvidenceEducation:
		payload = e.Education
	case EvidenceFamily:
		payload = e.Family
	case EvidenceGreekLife:
		payload = e.GreekLife
	case EvidenceHometown:
		payload = e.Hometown
	case EvidenceSocial:
		payload = e.Social
	default:
		return json.Marshal(evidenceWire{Kind: e.Kind})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evidenceWire{Kind: e.Kind, Data: data})
}

// UnmarshalJSON decodes a kind envelope. Unknown kinds keep their name and
// leave every variant nil.
func (e *Evidence) UnmarshalJSON(b []byte) error {
	*e = Evidence{}
	if string(b) == "null" || len(b) == 0 {
		return nil
	}
	var w evidenceWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("evidence: %w", err)
	}
	e.Kind = w.Kind
	if len(w.Data) == 0 || string(w.Data) == "null" {
		return nil
	}

	var target any
	switch w.Kind {
	case EvidenceCoworker:
		e.Coworker = &CoworkerEvidence{}
		target = e.Coworker
	case EvidenceEducation:
		e.Education = &EducationEvidence{}
		target = e.Education
	case EvidenceFamily:
		e.Family = &FamilyEvidence{}
		target = e.Family
	case EvidenceGreekLife:
		e.GreekLife = &GreekLifeEvidence{}
		target = e.GreekLife
	case EvidenceHometown:
		e.Hometown = &HometownEvidence{}
		target = e.Hometown
	case EvidenceSocial:
		e.Social = &SocialEvidence{}
		target = e.Social
	default:
		return nil
	}
	if err := json.Unmarshal(w.Data, target); err != nil {
		return fmt.Errorf("evidence %s: %w", w.Kind, err)
	}
	return nil
}

// Describe returns a short human-readable explanation of the evidence.
func (e Evidence) Describe() string {
	switch {
	case e.Coworker != nil:
		return "worked together at " + e.Coworker.Company
	case e.Education != nil:
		return "attended " + e.Education.School
	case e.Family != nil:
		return "family (" + e.Family.Relation + ")"
	case e.GreekLife != nil:
		return "members of " + e.GreekLife.Organization
	case e.Hometown != nil:
		return "both from " + e.Hometown.Town
	case e.Social != nil:
		return "connected on " + e.Social.Platform
	}
	return ""
}
