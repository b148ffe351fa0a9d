package types

// PathNode is one person on a connection path. For every node after the
// first, RelationshipType and Strength describe the hop into that node.
type PathNode struct {
	PersonSummary
	RelationshipType RelationshipType `json:"relationship_type,omitempty"`
	Strength         int              `json:"strength,omitempty"`
}

// ConnectionPath is a ranked introduction route from a source person to a
// target person. It is derived on demand and never persisted.
type ConnectionPath struct {
	Path          []PathNode `json:"path"`
	Hops          int        `json:"hops"`           // always len(Path)-1
	TotalStrength int        `json:"total_strength"` // 0-100
	TargetID      string     `json:"target_id"`
	Via           string     `json:"via,omitempty"` // intermediate person id(s), comma separated
	SamePerson    bool       `json:"same_person,omitempty"`
}

// Source returns the first person on the path.
func (p ConnectionPath) Source() PersonSummary {
	if len(p.Path) == 0 {
		return PersonSummary{}
	}
	return p.Path[0].PersonSummary
}

// Target returns the last person on the path.
func (p ConnectionPath) Target() PersonSummary {
	if len(p.Path) == 0 {
		return PersonSummary{}
	}
	return p.Path[len(p.Path)-1].PersonSummary
}

// WeakestLink returns the lowest hop strength on the path, or 0 for a
// zero-hop path.
func (p ConnectionPath) WeakestLink() int {
	if len(p.Path) < 2 {
		return 0
	}
	weakest := MaxStrength
	for _, n := range p.Path[1:] {
		if n.Strength < weakest {
			weakest = n.Strength
		}
	}
	return weakest
}
