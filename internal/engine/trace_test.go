package engine

import (
	"testing"
)

func TestSearchTrace_NilIsNoop(t *testing.T) {
	var st *SearchTrace
	st.SearchStarted("jane")
	st.CandidatesFound(3)
	st.PathFound("p1", "m1", 2, 63)
	st.FilteredOut("p1", "", "title mismatch")
	st.BoundsHit("max nodes")
	st.ResultsReturned(1)

	if events := st.Events(); events != nil {
		t.Errorf("nil trace should return no events, got %d", len(events))
	}
}

func TestSearchTrace_RecordsInOrder(t *testing.T) {
	st := &SearchTrace{}
	st.SearchStarted("Jane Doe Acme")
	st.CandidatesFound(2)
	st.PathFound("person-42", "", 1, 85)
	st.FilteredOut("person-43", "m1", "strength 20 below minimum 50")
	st.ResultsReturned(1)

	events := st.Events()
	want := []TraceEventKind{KindSearchStarted, KindCandidatesFound, KindPathFound, KindFilteredOut, KindResultsReturned}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Errorf("event %d: got %q, want %q", i, events[i].Kind, k)
		}
		if events[i].At.IsZero() {
			t.Errorf("event %d: At should be set", i)
		}
	}

	if events[0].Query != "Jane Doe Acme" {
		t.Errorf("Query: got %q", events[0].Query)
	}
	if events[1].Count != 2 {
		t.Errorf("Count: got %d, want 2", events[1].Count)
	}
	if events[2].PersonID != "person-42" || events[2].Hops != 1 || events[2].Strength != 85 {
		t.Errorf("PathFound: got %+v", events[2])
	}
	if events[3].Via != "m1" || events[3].Reason == "" {
		t.Errorf("FilteredOut: got %+v", events[3])
	}
}
