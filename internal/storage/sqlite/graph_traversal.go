package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

// FindDirectEdge returns the strongest edge stored from fromID to toID.
func (s *PersonStore) FindDirectEdge(ctx context.Context, fromID, toID string) (*types.RelationshipEdge, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("sqlite: FindDirectEdge: ids are required: %w", storage.ErrInvalidInput)
	}

	var (
		edge     types.RelationshipEdge
		relType  string
		evidence sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT from_id, to_id, type, strength, evidence
		FROM relationships
		WHERE from_id = ? AND to_id = ?
		ORDER BY strength DESC, type
		LIMIT 1`, fromID, toID,
	).Scan(&edge.FromID, &edge.ToID, &relType, &edge.Strength, &evidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: FindDirectEdge %s->%s: %w", fromID, toID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindDirectEdge: %w", err)
	}

	edge.Type = types.RelationshipType(relType)
	edge.Evidence = decodeEvidence(evidence)
	return &edge, nil
}

// FindTwoHopEdges finds every mutual connection between fromID and toID.
//
// Each leg is read in both directions (leg1: from<->mid, leg2: mid<->to) and
// the join yields one row per edge combination. CollapseTwoHop reduces that
// to one row per middle person.
func (s *PersonStore) FindTwoHopEdges(ctx context.Context, fromID, toID string) ([]storage.TwoHopEdge, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("sqlite: FindTwoHopEdges: ids are required: %w", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH leg1 AS (
			SELECT to_id AS mid, strength, type FROM relationships WHERE from_id = ?
			UNION ALL
			SELECT from_id AS mid, strength, type FROM relationships WHERE to_id = ?
		),
		leg2 AS (
			SELECT from_id AS mid, strength, type FROM relationships WHERE to_id = ?
			UNION ALL
			SELECT to_id AS mid, strength, type FROM relationships WHERE from_id = ?
		)
		SELECT leg1.mid, leg1.strength, leg1.type, leg2.strength, leg2.type
		FROM leg1
		JOIN leg2 ON leg1.mid = leg2.mid
		WHERE leg1.mid <> ? AND leg1.mid <> ?`,
		fromID, fromID, toID, toID, fromID, toID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindTwoHopEdges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var raw []storage.TwoHopEdge
	for rows.Next() {
		var (
			e            storage.TwoHopEdge
			type1, type2 string
		)
		if err := rows.Scan(&e.MiddleID, &e.Strength1, &type1, &e.Strength2, &type2); err != nil {
			return nil, fmt.Errorf("sqlite: FindTwoHopEdges: %w", err)
		}
		e.Type1 = types.RelationshipType(type1)
		e.Type2 = types.RelationshipType(type2)
		raw = append(raw, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: FindTwoHopEdges: %w", err)
	}
	return storage.CollapseTwoHop(raw), nil
}

// FindNeighbors returns the people tied to id in either direction.
func (s *PersonStore) FindNeighbors(ctx context.Context, id string, limit int) ([]storage.Neighbor, error) {
	if id == "" {
		return nil, fmt.Errorf("sqlite: FindNeighbors: empty id: %w", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_id, type, strength FROM relationships WHERE from_id = ?
		UNION ALL
		SELECT from_id, type, strength FROM relationships WHERE to_id = ?`,
		id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindNeighbors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var raw []storage.Neighbor
	for rows.Next() {
		var (
			n       storage.Neighbor
			relType string
		)
		if err := rows.Scan(&n.PersonID, &relType, &n.Strength); err != nil {
			return nil, fmt.Errorf("sqlite: FindNeighbors: %w", err)
		}
		n.Type = types.RelationshipType(relType)
		raw = append(raw, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: FindNeighbors: %w", err)
	}
	return storage.CollapseNeighbors(raw, limit), nil
}

// buildInClause returns a comma-separated string of n "?" placeholders.
func buildInClause(n int) string {
	if n == 0 {
		return ""
	}
	clause := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			clause = append(clause, ',')
		}
		clause = append(clause, '?')
	}
	return string(clause)
}

// uniqueStrings deduplicates a string slice while preserving order.
func uniqueStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
