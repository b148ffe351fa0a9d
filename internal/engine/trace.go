package engine

import "time"

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindSearchStarted is emitted at the beginning of a search.
	KindSearchStarted TraceEventKind = "search_started"

	// KindCandidatesFound is emitted after target candidates are resolved.
	KindCandidatesFound TraceEventKind = "candidates_found"

	// KindPathFound is emitted once per path discovered, before filtering.
	KindPathFound TraceEventKind = "path_found"

	// KindFilteredOut is emitted for every path or candidate discarded.
	KindFilteredOut TraceEventKind = "filtered_out"

	// KindBoundsHit is emitted when a deep search stops early.
	KindBoundsHit TraceEventKind = "bounds_hit"

	// KindResultsReturned is emitted after ranking to record the final set.
	KindResultsReturned TraceEventKind = "results_returned"
)

// TraceEvent is a single structured event emitted during a search.
type TraceEvent struct {
	Kind TraceEventKind `json:"kind"`
	At   time.Time      `json:"at"`

	// PersonID is the target (or filtered candidate) the event concerns.
	PersonID string `json:"person_id,omitempty"`

	// Via is the intermediate person id(s) for path events.
	Via string `json:"via,omitempty"`

	Hops     int    `json:"hops,omitempty"`
	Strength int    `json:"strength,omitempty"`
	Count    int    `json:"count,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// Query is the target description, populated in search_started.
	Query string `json:"query,omitempty"`
}

// SearchTrace accumulates events for one search. A nil *SearchTrace
// discards events, so callers never need to check whether tracing is on.
type SearchTrace struct {
	events []TraceEvent
}

func (t *SearchTrace) add(e TraceEvent) {
	if t == nil {
		return
	}
	e.At = time.Now()
	t.events = append(t.events, e)
}

// Events returns the recorded events.
func (t *SearchTrace) Events() []TraceEvent {
	if t == nil {
		return nil
	}
	return t.events
}

// SearchStarted records the start of a search.
func (t *SearchTrace) SearchStarted(query string) {
	t.add(TraceEvent{Kind: KindSearchStarted, Query: query})
}

// CandidatesFound records how many target candidates were resolved.
func (t *SearchTrace) CandidatesFound(count int) {
	t.add(TraceEvent{Kind: KindCandidatesFound, Count: count})
}

// PathFound records a discovered path.
func (t *SearchTrace) PathFound(targetID, via string, hops, strength int) {
	t.add(TraceEvent{Kind: KindPathFound, PersonID: targetID, Via: via, Hops: hops, Strength: strength})
}

// FilteredOut records a discarded path or candidate.
func (t *SearchTrace) FilteredOut(personID, via, reason string) {
	t.add(TraceEvent{Kind: KindFilteredOut, PersonID: personID, Via: via, Reason: reason})
}

// BoundsHit records an early stop of the deep search.
func (t *SearchTrace) BoundsHit(reason string) {
	t.add(TraceEvent{Kind: KindBoundsHit, Reason: reason})
}

// ResultsReturned records the final result count.
func (t *SearchTrace) ResultsReturned(count int) {
	t.add(TraceEvent{Kind: KindResultsReturned, Count: count})
}
