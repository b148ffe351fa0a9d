package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSearchBoundsExceeded indicates a deep search hit one of its limits.
var ErrSearchBoundsExceeded = errors.New("search bounds exceeded")

// SearchBounds limits the work done by searches deeper than two hops.
type SearchBounds struct {
	// MaxNodes is the maximum number of neighbors expanded.
	MaxNodes int

	// MaxEdges is the maximum number of candidate legs examined.
	MaxEdges int

	// Timeout is the maximum duration of the deep search.
	Timeout time.Duration
}

// Normalize applies defaults and caps.
func (b *SearchBounds) Normalize() {
	if b.MaxNodes < 1 {
		b.MaxNodes = 25
	}
	if b.MaxNodes > 200 {
		b.MaxNodes = 200
	}
	if b.MaxEdges < 1 {
		b.MaxEdges = 500
	}
	if b.MaxEdges > 10000 {
		b.MaxEdges = 10000
	}
	if b.Timeout <= 0 {
		b.Timeout = 2 * time.Second
	}
}

// BoundsChecker tracks and enforces SearchBounds during one deep search.
// It is not safe for concurrent use.
type BoundsChecker struct {
	bounds       SearchBounds
	nodesVisited int
	edgesVisited int
	startTime    time.Time
}

// BoundsStats contains statistics about search progress.
type BoundsStats struct {
	NodesVisited int
	EdgesVisited int
	Elapsed      time.Duration
}

// NewBoundsChecker creates a checker; bounds are normalized first.
func NewBoundsChecker(bounds SearchBounds) *BoundsChecker {
	bounds.Normalize()
	return &BoundsChecker{
		bounds:    bounds,
		startTime: time.Now(),
	}
}

// CanContinue checks context, node, edge and timeout limits.
func (b *BoundsChecker) CanContinue(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during deep search: %w", ctx.Err())
	default:
	}

	if b.nodesVisited >= b.bounds.MaxNodes {
		return fmt.Errorf("%w: max nodes (%d) exceeded", ErrSearchBoundsExceeded, b.bounds.MaxNodes)
	}
	if b.edgesVisited >= b.bounds.MaxEdges {
		return fmt.Errorf("%w: max edges (%d) exceeded", ErrSearchBoundsExceeded, b.bounds.MaxEdges)
	}
	if elapsed := time.Since(b.startTime); elapsed >= b.bounds.Timeout {
		return fmt.Errorf("%w: timeout (%v) exceeded after %v", ErrSearchBoundsExceeded, b.bounds.Timeout, elapsed)
	}
	return nil
}

// RecordNode counts one expanded neighbor.
func (b *BoundsChecker) RecordNode() {
	b.nodesVisited++
}

// RecordEdges counts n examined legs.
func (b *BoundsChecker) RecordEdges(n int) {
	b.edgesVisited += n
}

// Stats returns current progress.
func (b *BoundsChecker) Stats() BoundsStats {
	return BoundsStats{
		NodesVisited: b.nodesVisited,
		EdgesVisited: b.edgesVisited,
		Elapsed:      time.Since(b.startTime),
	}
}
