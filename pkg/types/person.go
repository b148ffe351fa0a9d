package types

// EducationRecord is one school attended by a person.
type EducationRecord struct {
	School         string `json:"school"`
	Degree         string `json:"degree,omitempty"`
	Field          string `json:"field,omitempty"`
	GraduationYear int    `json:"graduation_year,omitempty"`
}

// GreekLifeRecord describes a fraternity or sorority membership.
type GreekLifeRecord struct {
	Organization string `json:"organization"`
	Chapter      string `json:"chapter,omitempty"`
	School       string `json:"school,omitempty"`
}

// Person is a node in the relationship graph.
// People are created by import and onboarding collaborators; the path
// discovery core only reads them.
type Person struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Company  string `json:"company,omitempty"`
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
	Industry string `json:"industry,omitempty"`

	Education []EducationRecord `json:"education,omitempty"`
	GreekLife *GreekLifeRecord  `json:"greek_life,omitempty"`
	Hometown  string            `json:"hometown,omitempty"`

	// SocialProfiles maps a provider name (e.g. "linkedin") to a profile URL.
	SocialProfiles map[string]string `json:"social_profiles,omitempty"`
}

// PersonSummary is the slice of a Person carried on a connection path.
type PersonSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Summary returns the path summary for p. A nil person yields a zero summary.
func (p *Person) Summary() PersonSummary {
	if p == nil {
		return PersonSummary{}
	}
	return PersonSummary{
		ID:      p.ID,
		Name:    p.Name,
		Company: p.Company,
		Title:   p.Title,
	}
}
