package engine

import (
	"context"
	"time"

	"github.com/scrypster/warmconnector/internal/cache"
	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

// Store operation names recorded by InstrumentedStore.
const (
	OpFindPeople         = "find_people"
	OpFindDirectEdge     = "find_direct_edge"
	OpFindTwoHopEdges    = "find_two_hop_edges"
	OpFindNeighbors      = "find_neighbors"
	OpGetPersonByID      = "get_person_by_id"
	OpGetPersonsByIDs    = "get_persons_by_ids"
	OpBatchProfileLookup = "batch_profile_lookup"
)

// InstrumentedStore wraps a PersonStore, timing every call into a
// PerformanceMonitor and serving batch person lookups from the
// batch_profile_lookup cache.
type InstrumentedStore struct {
	inner    storage.PersonStore
	monitor  *PerformanceMonitor
	profiles *cache.PathCache
}

// NewInstrumentedStore wraps inner. monitor and profiles may be nil.
func NewInstrumentedStore(inner storage.PersonStore, monitor *PerformanceMonitor, profiles *cache.PathCache) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, monitor: monitor, profiles: profiles}
}

// Unwrap returns the wrapped store.
func (s *InstrumentedStore) Unwrap() storage.PersonStore {
	return s.inner
}

func (s *InstrumentedStore) record(op string, start time.Time, results int, hit bool, err error, opts ...string) {
	if s.monitor == nil {
		return
	}
	qm := QueryMetric{
		QueryTime:            time.Since(start),
		ResultCount:          results,
		CacheHit:             hit,
		OptimizationsApplied: opts,
		At:                   start,
	}
	if err != nil && classifyStoreError(err) == KindStoreFailure {
		s.monitor.RecordFailure(op, qm)
		return
	}
	s.monitor.Record(op, qm)
}

// FindPeople implements storage.PersonStore.
func (s *InstrumentedStore) FindPeople(ctx context.Context, name, company string) ([]*types.Person, error) {
	start := time.Now()
	people, err := s.inner.FindPeople(ctx, name, company)
	s.record(OpFindPeople, start, len(people), false, err)
	return people, err
}

// FindDirectEdge implements storage.PersonStore.
func (s *InstrumentedStore) FindDirectEdge(ctx context.Context, fromID, toID string) (*types.RelationshipEdge, error) {
	start := time.Now()
	edge, err := s.inner.FindDirectEdge(ctx, fromID, toID)
	n := 0
	if edge != nil {
		n = 1
	}
	s.record(OpFindDirectEdge, start, n, false, err)
	return edge, err
}

// FindTwoHopEdges implements storage.PersonStore.
func (s *InstrumentedStore) FindTwoHopEdges(ctx context.Context, fromID, toID string) ([]storage.TwoHopEdge, error) {
	start := time.Now()
	edges, err := s.inner.FindTwoHopEdges(ctx, fromID, toID)
	s.record(OpFindTwoHopEdges, start, len(edges), false, err)
	return edges, err
}

// FindNeighbors implements storage.NeighborLister. It returns nothing when
// the wrapped store cannot list neighbors.
func (s *InstrumentedStore) FindNeighbors(ctx context.Context, id string, limit int) ([]storage.Neighbor, error) {
	lister, ok := s.inner.(storage.NeighborLister)
	if !ok {
		return nil, nil
	}
	start := time.Now()
	neighbors, err := lister.FindNeighbors(ctx, id, limit)
	s.record(OpFindNeighbors, start, len(neighbors), false, err)
	return neighbors, err
}

// GetPersonByID implements storage.PersonStore.
func (s *InstrumentedStore) GetPersonByID(ctx context.Context, id string) (*types.Person, error) {
	start := time.Now()
	p, err := s.inner.GetPersonByID(ctx, id)
	n := 0
	if p != nil {
		n = 1
	}
	s.record(OpGetPersonByID, start, n, false, err)
	return p, err
}

// GetPersonsByIDs implements storage.PersonStore.
func (s *InstrumentedStore) GetPersonsByIDs(ctx context.Context, ids []string) (map[string]*types.Person, error) {
	start := time.Now()
	people, err := s.inner.GetPersonsByIDs(ctx, ids)
	s.record(OpGetPersonsByIDs, start, len(people), false, err, "batched_query")
	return people, err
}

// BatchProfileLookup returns the people with the given ids. Cached people
// are served from the batch_profile_lookup cache; the rest are fetched with
// exactly one GetPersonsByIDs call and cached. Missing ids are omitted.
func (s *InstrumentedStore) BatchProfileLookup(ctx context.Context, ids []string) (map[string]*types.Person, error) {
	start := time.Now()
	ids = storage.DedupeIDs(ids)
	out := make(map[string]*types.Person, len(ids))

	var misses []string
	keys := make(map[string]string, len(ids))
	for _, id := range ids {
		key, err := profileKey(id)
		if err != nil || s.profiles == nil {
			misses = append(misses, id)
			continue
		}
		keys[id] = key
		if v, ok := s.profiles.Get(key); ok {
			out[id] = v.(*types.Person)
			continue
		}
		misses = append(misses, id)
	}

	var applied []string
	if len(out) > 0 {
		applied = append(applied, "cache")
	}

	if len(misses) > 0 {
		applied = append(applied, "batched_query")
		var gen uint64
		if s.profiles != nil {
			gen = s.profiles.Generation()
		}
		fetched, err := s.inner.GetPersonsByIDs(ctx, misses)
		if err != nil {
			s.record(OpBatchProfileLookup, start, len(out), false, err, applied...)
			return nil, err
		}
		for id, p := range fetched {
			out[id] = p
			if key, ok := keys[id]; ok {
				s.profiles.SetIfGeneration(key, p, gen)
			}
		}
	}

	s.record(OpBatchProfileLookup, start, len(out), len(misses) == 0 && len(ids) > 0, nil, applied...)
	return out, nil
}

// Close implements storage.PersonStore.
func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

func profileKey(id string) (string, error) {
	return cache.Key(string(cache.BatchProfileLookup), map[string]string{"id": id})
}

var (
	_ storage.PersonStore    = (*InstrumentedStore)(nil)
	_ storage.NeighborLister = (*InstrumentedStore)(nil)
	_ ProfileLooker          = (*InstrumentedStore)(nil)
)
