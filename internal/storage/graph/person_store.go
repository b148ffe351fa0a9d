package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

// People are (:Person) nodes and ties are [:KNOWS {type, strength, evidence}]
// relationships. Structured person attributes are stored as JSON strings
// because graph properties cannot hold nested maps.
const (
	cypherUpsertPerson = `
MERGE (p:Person {id: $id})
SET p.name = $name,
    p.name_lower = toLower($name),
    p.company = $company,
    p.title = $title,
    p.location = $location,
    p.industry = $industry,
    p.hometown = $hometown,
    p.education_json = $education,
    p.greek_life_json = $greek_life,
    p.social_profiles_json = $social_profiles`

	cypherUpsertEdge = `
MATCH (a:Person {id: $from_id}), (b:Person {id: $to_id})
MERGE (a)-[r:KNOWS {type: $type}]->(b)
SET r.strength = $strength, r.evidence = $evidence
RETURN count(r) AS n`

	personProjection = `
RETURN p.id AS id, p.name AS name, p.company AS company, p.title AS title,
       p.location AS location, p.industry AS industry, p.hometown AS hometown,
       p.education_json AS education, p.greek_life_json AS greek_life,
       p.social_profiles_json AS social_profiles`

	cypherFindPeople = `
MATCH (p:Person)
WHERE p.name_lower CONTAINS $name
  AND ($company = '' OR toLower(coalesce(p.company, '')) CONTAINS $company)` + personProjection + `
ORDER BY p.name, p.id
LIMIT $limit`

	cypherPersonByID = `
MATCH (p:Person {id: $id})` + personProjection

	cypherPersonsByIDs = `
MATCH (p:Person)
WHERE p.id IN $ids` + personProjection

	cypherDirectEdge = `
MATCH (:Person {id: $from_id})-[r:KNOWS]->(:Person {id: $to_id})
RETURN r.type AS type, r.strength AS strength, r.evidence AS evidence
ORDER BY r.strength DESC, r.type
LIMIT 1`

	cypherTwoHop = `
MATCH (:Person {id: $from_id})-[r1:KNOWS]-(m:Person)-[r2:KNOWS]-(:Person {id: $to_id})
WHERE m.id <> $from_id AND m.id <> $to_id
RETURN m.id AS mid, r1.strength AS s1, r1.type AS t1, r2.strength AS s2, r2.type AS t2`

	cypherNeighbors = `
MATCH (:Person {id: $id})-[r:KNOWS]-(n:Person)
RETURN n.id AS id, r.type AS type, r.strength AS strength`
)

// PersonStore implements storage.Store over a graph Client.
type PersonStore struct {
	client Client
}

var _ storage.Store = (*PersonStore)(nil)

// NewPersonStore wraps client.
func NewPersonStore(client Client) *PersonStore {
	return &PersonStore{client: client}
}

// Close closes the underlying client.
func (s *PersonStore) Close() error {
	return s.client.Close(context.Background())
}

// StorePerson creates or updates a (:Person) node.
func (s *PersonStore) StorePerson(ctx context.Context, p *types.Person) error {
	if p == nil || p.ID == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("graph: StorePerson: id and name are required: %w", storage.ErrInvalidInput)
	}

	params := map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"company":         p.Company,
		"title":           p.Title,
		"location":        p.Location,
		"industry":        p.Industry,
		"hometown":        p.Hometown,
		"education":       "",
		"greek_life":      "",
		"social_profiles": "",
	}
	if len(p.Education) > 0 {
		b, err := json.Marshal(p.Education)
		if err != nil {
			return fmt.Errorf("graph: StorePerson: education: %w", err)
		}
		params["education"] = string(b)
	}
	if p.GreekLife != nil {
		b, err := json.Marshal(p.GreekLife)
		if err != nil {
			return fmt.Errorf("graph: StorePerson: greek_life: %w", err)
		}
		params["greek_life"] = string(b)
	}
	if len(p.SocialProfiles) > 0 {
		b, err := json.Marshal(p.SocialProfiles)
		if err != nil {
			return fmt.Errorf("graph: StorePerson: social_profiles: %w", err)
		}
		params["social_profiles"] = string(b)
	}

	if _, err := s.client.ExecuteWrite(ctx, cypherUpsertPerson, params); err != nil {
		return fmt.Errorf("graph: StorePerson: %w", err)
	}
	return nil
}

// StoreRelationship creates or updates a [:KNOWS] relationship. Both people
// must already exist.
func (s *PersonStore) StoreRelationship(ctx context.Context, e *types.RelationshipEdge) error {
	if e == nil {
		return fmt.Errorf("graph: StoreRelationship: nil edge: %w", storage.ErrInvalidInput)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("graph: StoreRelationship: %v: %w", err, storage.ErrInvalidInput)
	}

	evidence := ""
	if !e.Evidence.IsEmpty() {
		b, err := json.Marshal(e.Evidence)
		if err != nil {
			return fmt.Errorf("graph: StoreRelationship: evidence: %w", err)
		}
		evidence = string(b)
	}

	res, err := s.client.ExecuteWrite(ctx, cypherUpsertEdge, map[string]any{
		"from_id":  e.FromID,
		"to_id":    e.ToID,
		"type":     string(e.Type),
		"strength": int64(e.Strength),
		"evidence": evidence,
	})
	if err != nil {
		return fmt.Errorf("graph: StoreRelationship: %w", err)
	}
	if len(res.Records) > 0 && asInt(res.Records[0]["n"]) == 0 {
		return fmt.Errorf("graph: StoreRelationship %s->%s: endpoint missing: %w", e.FromID, e.ToID, storage.ErrNotFound)
	}
	return nil
}

// FindPeople matches name (and optionally company) case-insensitively.
func (s *PersonStore) FindPeople(ctx context.Context, name, company string) ([]*types.Person, error) {
	res, err := s.client.ExecuteRead(ctx, cypherFindPeople, map[string]any{
		"name":    strings.ToLower(name),
		"company": strings.ToLower(company),
		"limit":   int64(storage.MaxPeoplePageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("graph: FindPeople: %w", err)
	}

	people := make([]*types.Person, 0, len(res.Records))
	for _, rec := range res.Records {
		p, err := recordToPerson(rec)
		if err != nil {
			return nil, fmt.Errorf("graph: FindPeople: %w", err)
		}
		people = append(people, p)
	}
	return people, nil
}

// GetPersonByID returns the person with the given id.
func (s *PersonStore) GetPersonByID(ctx context.Context, id string) (*types.Person, error) {
	if id == "" {
		return nil, fmt.Errorf("graph: GetPersonByID: empty id: %w", storage.ErrInvalidInput)
	}
	res, err := s.client.ExecuteRead(ctx, cypherPersonByID, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("graph: GetPersonByID: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("graph: GetPersonByID %s: %w", id, storage.ErrNotFound)
	}
	p, err := recordToPerson(res.Records[0])
	if err != nil {
		return nil, fmt.Errorf("graph: GetPersonByID: %w", err)
	}
	return p, nil
}

// GetPersonsByIDs fetches all requested people in one query.
func (s *PersonStore) GetPersonsByIDs(ctx context.Context, ids []string) (map[string]*types.Person, error) {
	ids = storage.DedupeIDs(ids)
	out := make(map[string]*types.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	res, err := s.client.ExecuteRead(ctx, cypherPersonsByIDs, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("graph: GetPersonsByIDs: %w", err)
	}
	for _, rec := range res.Records {
		p, err := recordToPerson(rec)
		if err != nil {
			return nil, fmt.Errorf("graph: GetPersonsByIDs: %w", err)
		}
		out[p.ID] = p
	}
	return out, nil
}

// FindDirectEdge returns the strongest relationship from fromID to toID.
func (s *PersonStore) FindDirectEdge(ctx context.Context, fromID, toID string) (*types.RelationshipEdge, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("graph: FindDirectEdge: ids are required: %w", storage.ErrInvalidInput)
	}
	res, err := s.client.ExecuteRead(ctx, cypherDirectEdge, map[string]any{"from_id": fromID, "to_id": toID})
	if err != nil {
		return nil, fmt.Errorf("graph: FindDirectEdge: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("graph: FindDirectEdge %s->%s: %w", fromID, toID, storage.ErrNotFound)
	}

	rec := res.Records[0]
	edge := &types.RelationshipEdge{
		FromID:   fromID,
		ToID:     toID,
		Type:     types.RelationshipType(asString(rec["type"])),
		Strength: asInt(rec["strength"]),
	}
	if raw := asString(rec["evidence"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &edge.Evidence); err != nil {
			slog.Warn("graph: undecodable relationship evidence ignored", "from", fromID, "to", toID, "error", err)
			edge.Evidence = types.Evidence{}
		}
	}
	return edge, nil
}

// FindTwoHopEdges finds every mutual connection between fromID and toID.
func (s *PersonStore) FindTwoHopEdges(ctx context.Context, fromID, toID string) ([]storage.TwoHopEdge, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("graph: FindTwoHopEdges: ids are required: %w", storage.ErrInvalidInput)
	}
	res, err := s.client.ExecuteRead(ctx, cypherTwoHop, map[string]any{"from_id": fromID, "to_id": toID})
	if err != nil {
		return nil, fmt.Errorf("graph: FindTwoHopEdges: %w", err)
	}

	raw := make([]storage.TwoHopEdge, 0, len(res.Records))
	for _, rec := range res.Records {
		raw = append(raw, storage.TwoHopEdge{
			MiddleID:  asString(rec["mid"]),
			Strength1: asInt(rec["s1"]),
			Strength2: asInt(rec["s2"]),
			Type1:     types.RelationshipType(asString(rec["t1"])),
			Type2:     types.RelationshipType(asString(rec["t2"])),
		})
	}
	return storage.CollapseTwoHop(raw), nil
}

// FindNeighbors returns people tied to id in either direction.
func (s *PersonStore) FindNeighbors(ctx context.Context, id string, limit int) ([]storage.Neighbor, error) {
	if id == "" {
		return nil, fmt.Errorf("graph: FindNeighbors: empty id: %w", storage.ErrInvalidInput)
	}
	res, err := s.client.ExecuteRead(ctx, cypherNeighbors, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("graph: FindNeighbors: %w", err)
	}

	raw := make([]storage.Neighbor, 0, len(res.Records))
	for _, rec := range res.Records {
		raw = append(raw, storage.Neighbor{
			PersonID: asString(rec["id"]),
			Type:     types.RelationshipType(asString(rec["type"])),
			Strength: asInt(rec["strength"]),
		})
	}
	return storage.CollapseNeighbors(raw, limit), nil
}

func recordToPerson(rec Record) (*types.Person, error) {
	p := &types.Person{
		ID:       asString(rec["id"]),
		Name:     asString(rec["name"]),
		Company:  asString(rec["company"]),
		Title:    asString(rec["title"]),
		Location: asString(rec["location"]),
		Industry: asString(rec["industry"]),
		Hometown: asString(rec["hometown"]),
	}
	if raw := asString(rec["education"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Education); err != nil {
			return nil, fmt.Errorf("decode education for %s: %w", p.ID, err)
		}
	}
	if raw := asString(rec["greek_life"]); raw != "" {
		var gl types.GreekLifeRecord
		if err := json.Unmarshal([]byte(raw), &gl); err != nil {
			return nil, fmt.Errorf("decode greek_life for %s: %w", p.ID, err)
		}
		p.GreekLife = &gl
	}
	if raw := asString(rec["social_profiles"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.SocialProfiles); err != nil {
			return nil, fmt.Errorf("decode social_profiles for %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt accepts the integer shapes the Bolt driver and test fakes produce.
func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
