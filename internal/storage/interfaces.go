// Package storage defines the person/relationship store contract consumed by
// the path discovery engine.
//
// The contract is deliberately small so that any relational, document, or
// graph store exposing equivalent queries can satisfy it. Adapters live in
// the sqlite, postgres, and graph subpackages.
package storage

import (
	"context"

	"github.com/scrypster/warmconnector/pkg/types"
)

// PersonStore provides the read queries the path discovery core needs.
type PersonStore interface {
	// FindPeople returns people whose name contains name and, when company is
	// non-empty, whose company contains company. Matching is case-insensitive.
	// Results are ordered by name then id and bounded to MaxPeoplePageSize.
	FindPeople(ctx context.Context, name, company string) ([]*types.Person, error)

	// FindDirectEdge returns the edge from fromID to toID.
	// Returns ErrNotFound when no such edge exists.
	FindDirectEdge(ctx context.Context, fromID, toID string) (*types.RelationshipEdge, error)

	// FindTwoHopEdges returns every person M with an edge between fromID and M
	// and an edge between M and toID, in either direction on each leg. When a
	// leg has edges in both directions the stronger one is reported.
	FindTwoHopEdges(ctx context.Context, fromID, toID string) ([]TwoHopEdge, error)

	// GetPersonByID returns a single person.
	// Returns ErrNotFound when the person does not exist.
	GetPersonByID(ctx context.Context, id string) (*types.Person, error)

	// GetPersonsByIDs returns the people with the given ids in one round-trip.
	// Ids that do not exist are omitted from the map.
	GetPersonsByIDs(ctx context.Context, ids []string) (map[string]*types.Person, error)

	// Close releases any resources held by the store.
	Close() error
}

// NeighborLister is implemented by stores that can enumerate a person's
// direct ties. The engine uses it for searches deeper than two hops.
type NeighborLister interface {
	// FindNeighbors returns people tied to id in either direction, strongest
	// first, bounded by limit.
	FindNeighbors(ctx context.Context, id string, limit int) ([]Neighbor, error)
}

// PersonWriter persists people and edges. Import and onboarding
// collaborators use it; the search path never does.
type PersonWriter interface {
	// StorePerson creates or updates a person (upsert semantics).
	StorePerson(ctx context.Context, person *types.Person) error

	// StoreRelationship creates or updates the edge keyed by (from, to, type).
	StoreRelationship(ctx context.Context, edge *types.RelationshipEdge) error
}

// Store is the full read/write surface implemented by every adapter.
type Store interface {
	PersonStore
	PersonWriter
	NeighborLister
}
