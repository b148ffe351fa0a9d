package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

// fakeStore is an in-memory storage.Store that counts calls and can be told
// to fail specific operations.
type fakeStore struct {
	mu     sync.Mutex
	people map[string]*types.Person
	edges  []types.RelationshipEdge
	calls  map[string]int
	failOn map[string]error

	lastBatchIDs []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		people: make(map[string]*types.Person),
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
}

func (s *fakeStore) addPerson(id, name, company, title string) *fakeStore {
	s.people[id] = &types.Person{ID: id, Name: name, Company: company, Title: title}
	return s
}

func (s *fakeStore) addEdge(from, to string, relType types.RelationshipType, strength int) *fakeStore {
	s.edges = append(s.edges, types.RelationshipEdge{FromID: from, ToID: to, Type: relType, Strength: strength})
	return s
}

func (s *fakeStore) fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

func (s *fakeStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *fakeStore) begin(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.failOn[op]
}

func (s *fakeStore) FindPeople(ctx context.Context, name, company string) ([]*types.Person, error) {
	if err := s.begin(OpFindPeople); err != nil {
		return nil, err
	}
	name, company = strings.ToLower(name), strings.ToLower(company)
	var out []*types.Person
	for _, p := range s.people {
		if !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if company != "" && !strings.Contains(strings.ToLower(p.Company), company) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fakeStore) FindDirectEdge(ctx context.Context, fromID, toID string) (*types.RelationshipEdge, error) {
	if err := s.begin(OpFindDirectEdge); err != nil {
		return nil, err
	}
	var best *types.RelationshipEdge
	for i := range s.edges {
		e := s.edges[i]
		if e.FromID == fromID && e.ToID == toID && (best == nil || e.Strength > best.Strength) {
			best = &e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("fake: edge %s->%s: %w", fromID, toID, storage.ErrNotFound)
	}
	return best, nil
}

// ties returns every edge touching id as (other, type, strength).
func (s *fakeStore) ties(id string) []storage.Neighbor {
	var out []storage.Neighbor
	for _, e := range s.edges {
		switch id {
		case e.FromID:
			out = append(out, storage.Neighbor{PersonID: e.ToID, Type: e.Type, Strength: e.Strength})
		case e.ToID:
			out = append(out, storage.Neighbor{PersonID: e.FromID, Type: e.Type, Strength: e.Strength})
		}
	}
	return out
}

func (s *fakeStore) FindTwoHopEdges(ctx context.Context, fromID, toID string) ([]storage.TwoHopEdge, error) {
	if err := s.begin(OpFindTwoHopEdges); err != nil {
		return nil, err
	}
	var rows []storage.TwoHopEdge
	for _, a := range s.ties(fromID) {
		if a.PersonID == fromID || a.PersonID == toID {
			continue
		}
		for _, b := range s.ties(toID) {
			if b.PersonID != a.PersonID {
				continue
			}
			rows = append(rows, storage.TwoHopEdge{
				MiddleID:  a.PersonID,
				Strength1: a.Strength, Type1: a.Type,
				Strength2: b.Strength, Type2: b.Type,
			})
		}
	}
	return storage.CollapseTwoHop(rows), nil
}

func (s *fakeStore) FindNeighbors(ctx context.Context, id string, limit int) ([]storage.Neighbor, error) {
	if err := s.begin(OpFindNeighbors); err != nil {
		return nil, err
	}
	return storage.CollapseNeighbors(s.ties(id), limit), nil
}

func (s *fakeStore) GetPersonByID(ctx context.Context, id string) (*types.Person, error) {
	if err := s.begin(OpGetPersonByID); err != nil {
		return nil, err
	}
	p, ok := s.people[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GetPersonsByIDs(ctx context.Context, ids []string) (map[string]*types.Person, error) {
	if err := s.begin(OpGetPersonsByIDs); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastBatchIDs = append([]string(nil), ids...)
	s.mu.Unlock()
	out := make(map[string]*types.Person, len(ids))
	for _, id := range ids {
		if p, ok := s.people[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *fakeStore) StorePerson(ctx context.Context, p *types.Person) error {
	s.people[p.ID] = p
	return nil
}

func (s *fakeStore) StoreRelationship(ctx context.Context, e *types.RelationshipEdge) error {
	s.edges = append(s.edges, *e)
	return nil
}

func (s *fakeStore) Close() error { return nil }

var _ storage.Store = (*fakeStore)(nil)

// readOnlyStore hides FindNeighbors, so deep searches are unavailable.
type readOnlyStore struct {
	storage.PersonStore
}

// demoStore is the canonical scenario: demo-user-001 knows Jane Doe at Acme
// Corp directly (COWORKER 85) and nobody else.
func demoStore() *fakeStore {
	return newFakeStore().
		addPerson("demo-user-001", "Alex Demo", "Initech", "Founder").
		addPerson("person-42", "Jane Doe", "Acme Corp", "VP Engineering").
		addEdge("demo-user-001", "person-42", types.RelationshipCoworker, 85)
}

// pathIDs flattens a path into its person ids.
func pathIDs(p types.ConnectionPath) []string {
	ids := make([]string, len(p.Path))
	for i, n := range p.Path {
		ids[i] = n.ID
	}
	return ids
}

type stubMatcher struct {
	result MatchResult
	err    error
	calls  int
}

func (m *stubMatcher) FindByMinimalInfo(ctx context.Context, name, company, title string) (MatchResult, error) {
	m.calls++
	return m.result, m.err
}

type stubEnricher struct {
	items []EnrichmentItem
	err   error
	calls int
}

func (e *stubEnricher) Enrich(ctx context.Context, q EnrichmentQuery) ([]EnrichmentItem, error) {
	e.calls++
	return e.items, e.err
}

type stubNarrator struct {
	text  string
	err   error
	block bool
}

func (n *stubNarrator) Narrate(ctx context.Context, in NarrativeInput, base string) (string, error) {
	if n.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n.err != nil {
		return "", n.err
	}
	return n.text + " " + base, nil
}
