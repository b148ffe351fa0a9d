package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

func TestPersonStore_StorePerson(t *testing.T) {
	mem := NewMemoryClient()
	store := NewPersonStore(mem)

	err := store.StorePerson(context.Background(), &types.Person{
		ID:        "person-42",
		Name:      "Jane Doe",
		Company:   "Acme Corp",
		Education: []types.EducationRecord{{School: "UT Austin"}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	calls := mem.WriteCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 write query, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Query, "MERGE (p:Person {id: $id})") {
		t.Fatalf("unexpected query: %s", calls[0].Query)
	}
	if calls[0].Params["education"] != `[{"school":"UT Austin"}]` {
		t.Fatalf("education param = %v", calls[0].Params["education"])
	}
	if calls[0].Params["greek_life"] != "" {
		t.Fatalf("greek_life param should be empty, got %v", calls[0].Params["greek_life"])
	}
}

func TestPersonStore_StoreRelationshipMissingEndpoint(t *testing.T) {
	mem := NewMemoryClient()
	mem.PushWriteResult(Result{Records: []Record{{"n": int64(0)}}})
	store := NewPersonStore(mem)

	err := store.StoreRelationship(context.Background(), &types.RelationshipEdge{
		FromID: "a", ToID: "b", Type: types.RelationshipSocial, Strength: 40,
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonStore_StoreRelationshipInvalid(t *testing.T) {
	mem := NewMemoryClient()
	store := NewPersonStore(mem)

	err := store.StoreRelationship(context.Background(), &types.RelationshipEdge{
		FromID: "a", ToID: "b", Type: "RIVAL", Strength: 40,
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(mem.WriteCalls()) != 0 {
		t.Fatal("invalid edge should not reach the graph")
	}
}

func TestPersonStore_FindPeople(t *testing.T) {
	mem := NewMemoryClient()
	mem.PushReadRecords(
		Record{"id": "p1", "name": "Jane Doe", "company": "Acme Corp", "greek_life": `{"organization":"Sigma Chi"}`},
		Record{"id": "p2", "name": "Jane Roe", "company": nil},
	)
	store := NewPersonStore(mem)

	people, err := store.FindPeople(context.Background(), "JANE", "Acme")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}
	if people[0].GreekLife == nil || people[0].GreekLife.Organization != "Sigma Chi" {
		t.Fatalf("greek life not decoded: %+v", people[0].GreekLife)
	}

	calls := mem.ReadCalls()
	if calls[0].Params["name"] != "jane" || calls[0].Params["company"] != "acme" {
		t.Fatalf("params not lower-cased: %+v", calls[0].Params)
	}
	if calls[0].Params["limit"] != int64(storage.MaxPeoplePageSize) {
		t.Fatalf("limit param = %v", calls[0].Params["limit"])
	}
}

func TestPersonStore_GetPersonByIDNotFound(t *testing.T) {
	store := NewPersonStore(NewMemoryClient())
	_, err := store.GetPersonByID(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonStore_FindDirectEdge(t *testing.T) {
	mem := NewMemoryClient()
	mem.PushReadRecords(Record{
		"type":     "COWORKER",
		"strength": int64(85),
		"evidence": `{"kind":"coworker","data":{"company":"Acme Corp"}}`,
	})
	store := NewPersonStore(mem)

	edge, err := store.FindDirectEdge(context.Background(), "demo-user-001", "person-42")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if edge.Strength != 85 || edge.Type != types.RelationshipCoworker {
		t.Fatalf("unexpected edge %+v", edge)
	}
	if edge.Evidence.Coworker == nil || edge.Evidence.Coworker.Company != "Acme Corp" {
		t.Fatalf("evidence not decoded: %+v", edge.Evidence)
	}

	_, err = store.FindDirectEdge(context.Background(), "person-42", "demo-user-001")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty result, got %v", err)
	}
}

func TestPersonStore_FindTwoHopEdgesCollapses(t *testing.T) {
	mem := NewMemoryClient()
	mem.PushReadRecords(
		Record{"mid": "m2", "s1": int64(50), "t1": "SOCIAL", "s2": int64(40), "t2": "SOCIAL"},
		Record{"mid": "m1", "s1": int64(20), "t1": "SOCIAL", "s2": int64(60), "t2": "EDUCATION"},
		Record{"mid": "m1", "s1": int64(80), "t1": "COWORKER", "s2": int64(60), "t2": "EDUCATION"},
	)
	store := NewPersonStore(mem)

	edges, err := store.FindTwoHopEdges(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	if edges[0].MiddleID != "m1" || edges[0].Strength1 != 80 || edges[0].Type1 != types.RelationshipCoworker {
		t.Fatalf("unexpected first edge %+v", edges[0])
	}
}

func TestPersonStore_PropagatesClientError(t *testing.T) {
	boom := errors.New("bolt unavailable")
	store := NewPersonStore(NewMemoryClient().WithError(boom))

	_, err := store.FindNeighbors(context.Background(), "a", 5)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestPersonStore_Close(t *testing.T) {
	mem := NewMemoryClient()
	store := NewPersonStore(mem)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mem.Closed() {
		t.Fatal("expected client to be closed")
	}
}
