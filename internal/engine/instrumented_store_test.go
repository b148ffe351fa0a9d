package engine

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/scrypster/warmconnector/internal/cache"
	"github.com/scrypster/warmconnector/internal/storage"
)

func batchStore() *fakeStore {
	return newFakeStore().
		addPerson("id1", "One", "", "").
		addPerson("id2", "Two", "", "").
		addPerson("id3", "Three", "", "")
}

func TestBatchProfileLookup_OneRoundTripForMisses(t *testing.T) {
	inner := batchStore()
	monitor := NewPerformanceMonitor()
	s := NewInstrumentedStore(inner, monitor, cache.New(cache.BatchProfileLookup, cache.Config{}))
	ctx := context.Background()

	if _, err := s.BatchProfileLookup(ctx, []string{"id1"}); err != nil {
		t.Fatalf("warm-up: %v", err)
	}
	before := inner.count(OpGetPersonsByIDs)

	got, err := s.BatchProfileLookup(ctx, []string{"id1", "id2", "id3", "ghost", "id2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := inner.count(OpGetPersonsByIDs) - before; n != 1 {
		t.Fatalf("expected exactly one store round-trip, got %d", n)
	}

	fetched := append([]string(nil), inner.lastBatchIDs...)
	sort.Strings(fetched)
	if !reflect.DeepEqual(fetched, []string{"ghost", "id2", "id3"}) {
		t.Errorf("only uncached ids should be fetched, got %v", fetched)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 people, got %d", len(got))
	}
	for _, id := range []string{"id1", "id2", "id3"} {
		if got[id] == nil || got[id].ID != id {
			t.Errorf("missing %s in result", id)
		}
	}
	if _, ok := got["ghost"]; ok {
		t.Error("nonexistent id should be omitted")
	}
}

func TestBatchProfileLookup_AllCached(t *testing.T) {
	inner := batchStore()
	s := NewInstrumentedStore(inner, nil, cache.New(cache.BatchProfileLookup, cache.Config{}))
	ctx := context.Background()

	if _, err := s.BatchProfileLookup(ctx, []string{"id1", "id2"}); err != nil {
		t.Fatalf("warm-up: %v", err)
	}
	before := inner.count(OpGetPersonsByIDs)

	got, err := s.BatchProfileLookup(ctx, []string{"id2", "id1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.count(OpGetPersonsByIDs) != before {
		t.Error("fully cached lookup should not hit the store")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 people, got %d", len(got))
	}
}

func TestBatchProfileLookup_WithoutCache(t *testing.T) {
	inner := batchStore()
	s := NewInstrumentedStore(inner, nil, nil)

	got, err := s.BatchProfileLookup(context.Background(), []string{"id1", "id3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || inner.count(OpGetPersonsByIDs) != 1 {
		t.Errorf("got %d people in %d calls", len(got), inner.count(OpGetPersonsByIDs))
	}
}

func TestBatchProfileLookup_StoreError(t *testing.T) {
	inner := batchStore()
	boom := errors.New("pool exhausted")
	inner.fail(OpGetPersonsByIDs, boom)
	monitor := NewPerformanceMonitor()
	s := NewInstrumentedStore(inner, monitor, cache.New(cache.BatchProfileLookup, cache.Config{}))

	_, err := s.BatchProfileLookup(context.Background(), []string{"id1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if got := monitor.Report().TotalSamples; got != 1 {
		t.Errorf("failed lookup should still be recorded, got %d samples", got)
	}
}

func TestInstrumentedStore_RecordsEveryOperation(t *testing.T) {
	inner := demoStore()
	monitor := NewPerformanceMonitor()
	s := NewInstrumentedStore(inner, monitor, nil)
	ctx := context.Background()

	if _, err := s.FindPeople(ctx, "jane", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindDirectEdge(ctx, "demo-user-001", "person-42"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindDirectEdge(ctx, "person-42", "demo-user-001"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindTwoHopEdges(ctx, "demo-user-001", "person-42"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindNeighbors(ctx, "demo-user-001", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPersonByID(ctx, "person-42"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPersonsByIDs(ctx, []string{"person-42"}); err != nil {
		t.Fatal(err)
	}

	report := monitor.Report()
	ops := make(map[string]OperationStats)
	for _, st := range report.Operations {
		ops[st.Operation] = st
	}
	for _, op := range []string{OpFindPeople, OpFindDirectEdge, OpFindTwoHopEdges, OpFindNeighbors, OpGetPersonByID, OpGetPersonsByIDs} {
		if _, ok := ops[op]; !ok {
			t.Errorf("operation %s not recorded", op)
		}
	}
	if ops[OpFindDirectEdge].Samples != 2 {
		t.Errorf("find_direct_edge samples: got %d, want 2", ops[OpFindDirectEdge].Samples)
	}
}

func TestInstrumentedStore_NeighborsUnsupported(t *testing.T) {
	s := NewInstrumentedStore(readOnlyStore{demoStore()}, nil, nil)
	neighbors, err := s.FindNeighbors(context.Background(), "demo-user-001", 5)
	if err != nil || neighbors != nil {
		t.Errorf("expected no neighbors and no error, got %v, %v", neighbors, err)
	}
}

func TestGraphSearch_UsesBatchProfileLookup(t *testing.T) {
	inner := demoStore()
	s := NewInstrumentedStore(inner, nil, cache.New(cache.BatchProfileLookup, cache.Config{}))
	g := NewGraphSearch(s)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := g.FindPaths(ctx, "demo-user-001", "person-42", PathOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Paths) != 1 || res.Paths[0].Target().Name != "Jane Doe" {
			t.Fatalf("run %d: unexpected paths %+v", i, res.Paths)
		}
	}
	if n := inner.count(OpGetPersonsByIDs); n != 1 {
		t.Errorf("second search should read people from cache, got %d batch queries", n)
	}
}
