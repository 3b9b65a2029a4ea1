package jobstore

import (
	"encoding/json"
	"testing"
)

func TestJobEventsOrderedOldestFirst(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})

	if _, ok, err := s.ClaimOne(Candidate{ID: res.JobID, Queue: "download"}, "worker-1"); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if _, err := s.Cancel(res.JobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	events, err := s.JobEvents(res.JobID)
	if err != nil {
		t.Fatalf("job events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (start, cancel_requested), got %d", len(events))
	}
	if events[0].ID >= events[1].ID {
		t.Fatalf("events not ordered oldest first: %+v", events)
	}
}

func TestEventJSONIncludesType(t *testing.T) {
	raw, err := eventJSON("start", map[string]any{"worker": "w1"})
	if err != nil {
		t.Fatalf("event json: %v", err)
	}
	if string(raw) == "" {
		t.Fatalf("expected non-empty event payload")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if m["type"] != "start" {
		t.Fatalf("type = %v, want start", m["type"])
	}
}
