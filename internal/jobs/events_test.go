package jobs

import (
	"testing"

	"video-transcriber/internal/domain"
)

// TestEventBusAssignsIncreasingSequences checks sequence assignment
// and incremental reads.
func TestEventBusAssignsIncreasingSequences(t *testing.T) {
	bus := NewEventBus(10)

	first := bus.Publish(Event{RunID: "run-1", Type: EventTypeStatus, Status: domain.RunStatusIngesting})
	second := bus.Publish(Event{RunID: "run-1", Type: EventTypeSegment, SegmentSeq: 1, Text: "hello"})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seqs = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() {
		t.Fatal("timestamp not assigned")
	}

	events := bus.Since(1)
	if len(events) != 1 || events[0].Seq != 2 {
		t.Fatalf("Since(1) = %+v", events)
	}
	if len(bus.Since(2)) != 0 {
		t.Fatal("Since(2) should be empty")
	}
}

// TestEventBusFiltersByRun checks per-run incremental reads.
func TestEventBusFiltersByRun(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{RunID: "run-1", Type: EventTypeStatus})
	bus.Publish(Event{RunID: "run-2", Type: EventTypeStatus})
	bus.Publish(Event{RunID: "run-1", Type: EventTypeSegment, Text: "hi"})

	events := bus.SinceFor("run-1", 0)
	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2", len(events))
	}
	for _, event := range events {
		if event.RunID != "run-1" {
			t.Fatalf("leaked event for %s", event.RunID)
		}
	}
}

// TestEventBusTrimsToCapacity checks the bounded buffer keeps only the
// newest events while sequences keep growing.
func TestEventBusTrimsToCapacity(t *testing.T) {
	bus := NewEventBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(Event{RunID: "run-1", Type: EventTypeStatus})
	}

	events := bus.Since(0)
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3", len(events))
	}
	if events[0].Seq != 3 || events[2].Seq != 5 {
		t.Fatalf("kept seqs %d..%d, want 3..5", events[0].Seq, events[2].Seq)
	}
}
