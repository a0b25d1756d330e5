package events

import (
	"sync/atomic"
	"testing"
	"time"
)

const recvTimeout = 500 * time.Millisecond

// chanListener returns a listener that forwards events to a channel
// large enough to never block the worker pool.
func chanListener() (Listener, <-chan *Event) {
	ch := make(chan *Event, 64)
	return func(e *Event) { ch <- e }, ch
}

// recv waits for one event or fails the test.
func recv(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(recvTimeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// quiet asserts no event arrives within a short window.
func quiet(t *testing.T, ch <-chan *Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %v", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusFanout(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	typed, typedCh := chanListener()
	all, allCh := chanListener()
	bus.Subscribe(EventCompositionStarted, typed)
	bus.SubscribeAll(all)

	bus.Publish(&Event{Type: EventCompositionStarted, Data: CompositionStartedData{Overrides: 1}})

	if e := recv(t, typedCh); e.Type != EventCompositionStarted {
		t.Errorf("typed listener got %v", e.Type)
	}
	if e := recv(t, allCh); e.Type != EventCompositionStarted {
		t.Errorf("catch-all listener got %v", e.Type)
	}

	// a different event type bypasses the typed listener
	bus.Publish(&Event{Type: EventSnapshotSaved})
	recv(t, allCh)
	quiet(t, typedCh)
}

func TestBusSurvivesPanickingListener(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	bus.Subscribe(EventCompositionFailed, func(*Event) { panic("listener panic") })
	ok, okCh := chanListener()
	bus.Subscribe(EventCompositionFailed, ok)

	bus.Publish(&Event{Type: EventCompositionFailed})

	recv(t, okCh)
}

func TestBusUnsubscribe(t *testing.T) {
	t.Parallel()

	t.Run("typed", func(t *testing.T) {
		t.Parallel()
		bus := NewEventBus()
		defer bus.Close()

		l, ch := chanListener()
		unsub := bus.Subscribe(EventCompositionStarted, l)

		bus.Publish(&Event{Type: EventCompositionStarted})
		recv(t, ch)

		unsub()
		bus.Publish(&Event{Type: EventCompositionStarted})
		quiet(t, ch)
	})

	t.Run("catch-all", func(t *testing.T) {
		t.Parallel()
		bus := NewEventBus()
		defer bus.Close()

		l, ch := chanListener()
		unsub := bus.SubscribeAll(l)

		bus.Publish(&Event{Type: EventCompositionStarted})
		recv(t, ch)

		unsub()
		bus.Publish(&Event{Type: EventCompositionStarted})
		quiet(t, ch)
	})
}

func TestBusClose(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	l, ch := chanListener()
	bus.Subscribe(EventCompositionStarted, l)

	if !bus.Publish(&Event{Type: EventCompositionStarted}) {
		t.Fatal("Publish before Close should succeed")
	}
	recv(t, ch)

	bus.Close()
	bus.Close() // idempotent

	if bus.Publish(&Event{Type: EventCompositionStarted}) {
		t.Fatal("Publish after Close should report false")
	}
	quiet(t, ch)
}

func TestBusCloseDrainsQueuedEvents(t *testing.T) {
	t.Parallel()

	// one worker so delivery is strictly serialized
	bus := NewEventBus(WithWorkerPoolSize(1), WithEventBufferSize(100))

	var count atomic.Int32
	bus.Subscribe(EventCompositionStarted, func(*Event) { count.Add(1) })

	for range 50 {
		bus.Publish(&Event{Type: EventCompositionStarted})
	}
	bus.Close()

	if got := count.Load(); got != 50 {
		t.Fatalf("drained %d of 50 queued events", got)
	}
}

func TestBusOptions(t *testing.T) {
	t.Parallel()

	t.Run("custom pool and buffer", func(t *testing.T) {
		t.Parallel()
		bus := NewEventBus(WithWorkerPoolSize(2), WithEventBufferSize(5))
		defer bus.Close()

		l, ch := chanListener()
		bus.Subscribe(EventCompositionStarted, l)
		for range 3 {
			bus.Publish(&Event{Type: EventCompositionStarted})
		}
		for range 3 {
			recv(t, ch)
		}
	})

	t.Run("non-positive values keep defaults", func(t *testing.T) {
		t.Parallel()
		bus := NewEventBus(WithWorkerPoolSize(0), WithEventBufferSize(-1))
		defer bus.Close()

		l, ch := chanListener()
		bus.Subscribe(EventCompositionStarted, l)
		bus.Publish(&Event{Type: EventCompositionStarted})
		recv(t, ch)
	})
}

func TestBusClearDropsAllListeners(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	typed, typedCh := chanListener()
	all, allCh := chanListener()
	bus.Subscribe(EventCompositionStarted, typed)
	bus.SubscribeAll(all)

	bus.Clear()

	// sentinel subscribed after Clear proves the event went through
	sentinel, sentinelCh := chanListener()
	bus.Subscribe(EventCompositionStarted, sentinel)

	bus.Publish(&Event{Type: EventCompositionStarted})
	recv(t, sentinelCh)
	quiet(t, typedCh)
	quiet(t, allCh)
}
