package events

import (
	"testing"
	"time"
)

func TestRecorderCapturesEvents(t *testing.T) {
	t.Parallel()

	bus := NewEventBus(WithWorkerPoolSize(1))
	rec := NewRecorder()
	bus.SubscribeAll(rec.Record)

	emitter := NewEmitter(bus, "deepar", "sweep-1")
	emitter.SweepStarted(4, 2)
	emitter.SweepRunCompleted(0, "snap-1", nil, time.Millisecond)
	emitter.SweepCompleted(4, 0, time.Second)

	// Close drains the queue, so every published event is recorded.
	bus.Close()

	if rec.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", rec.Len())
	}

	recorded := rec.Events()
	if recorded[0].Type != EventSweepStarted || recorded[2].Type != EventSweepCompleted {
		t.Fatalf("unexpected event order: %v, %v", recorded[0].Type, recorded[2].Type)
	}
	if recorded[1].SweepID != "sweep-1" {
		t.Fatalf("unexpected sweep id %q", recorded[1].SweepID)
	}
}

func TestRecorderEventsReturnsCopy(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	rec.Record(&Event{Type: EventSweepStarted, SweepID: "sweep-1"})

	first := rec.Events()
	first[0].SweepID = "mutated"

	if got := rec.Events()[0].SweepID; got != "sweep-1" {
		t.Fatalf("expected recorder contents unchanged, got %q", got)
	}
}

func TestRecorderReset(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	rec.Record(&Event{Type: EventSweepStarted})
	rec.Reset()

	if rec.Len() != 0 {
		t.Fatalf("expected empty recorder after reset, got %d", rec.Len())
	}
}

func TestRecorderNilEvent(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	rec.Record(nil)

	if rec.Len() != 0 {
		t.Fatalf("expected nil event to be ignored, got %d", rec.Len())
	}
}
