// Package events provides a lightweight pub/sub event bus for toolkit
// observability. Composition, validation, store and sweep operations publish
// events here; the metrics and telemetry packages subscribe.
package events

import "sync"

// Event bus defaults.
const (
	defaultWorkerPoolSize  = 4
	defaultEventBufferSize = 256
)

// Listener is a function that handles events.
type Listener func(*Event)

// listenerEntry pairs a listener with an id so it can be unsubscribed.
type listenerEntry struct {
	id int64
	fn Listener
}

// EventBus manages event distribution to listeners. Events are dispatched
// asynchronously by a bounded worker pool so publishers never block on slow
// listeners; when the buffer is full, events are dropped rather than queued
// indefinitely. Close drains the buffer before returning, so short-lived
// processes see every event they published.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]listenerEntry
	globalListeners []listenerEntry
	nextID          int64
	queue           chan *Event
	workers         sync.WaitGroup
	closed          bool
}

// BusOption configures an EventBus.
type BusOption func(*busConfig)

type busConfig struct {
	poolSize   int
	bufferSize int
}

// WithWorkerPoolSize sets the number of dispatch workers. Values below one
// are ignored.
func WithWorkerPoolSize(n int) BusOption {
	return func(c *busConfig) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithEventBufferSize sets the publish buffer capacity. Values below one are
// ignored.
func WithEventBufferSize(n int) BusOption {
	return func(c *busConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// NewEventBus creates a new event bus and starts its worker pool.
func NewEventBus(opts ...BusOption) *EventBus {
	cfg := busConfig{
		poolSize:   defaultWorkerPoolSize,
		bufferSize: defaultEventBufferSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	eb := &EventBus{
		listeners: make(map[EventType][]listenerEntry),
		queue:     make(chan *Event, cfg.bufferSize),
	}

	eb.workers.Add(cfg.poolSize)
	for i := 0; i < cfg.poolSize; i++ {
		go eb.worker()
	}

	return eb
}

// Subscribe registers a listener for a specific event type and returns a
// function that removes it again.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.listeners[eventType] = append(eb.listeners[eventType], listenerEntry{id: id, fn: listener})

	return func() { eb.unsubscribe(eventType, id) }
}

// SubscribeAll registers a listener for all event types and returns a
// function that removes it again.
func (eb *EventBus) SubscribeAll(listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.globalListeners = append(eb.globalListeners, listenerEntry{id: id, fn: listener})

	return func() { eb.unsubscribeAll(id) }
}

// Publish queues an event for asynchronous delivery. It reports false when
// the bus is closed or the buffer is full, in which case the event is
// dropped.
func (eb *EventBus) Publish(event *Event) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return false
	}

	select {
	case eb.queue <- event:
		return true
	default:
		return false
	}
}

// Close stops accepting events, waits for the queue to drain, and shuts the
// worker pool down. It is safe to call more than once.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	if !eb.closed {
		eb.closed = true
		close(eb.queue)
	}
	eb.mu.Unlock()

	eb.workers.Wait()
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = make(map[EventType][]listenerEntry)
	eb.globalListeners = nil
}

func (eb *EventBus) worker() {
	defer eb.workers.Done()
	for event := range eb.queue {
		eb.dispatch(event)
	}
}

func (eb *EventBus) dispatch(event *Event) {
	eb.mu.RLock()
	specific := make([]Listener, 0, len(eb.listeners[event.Type]))
	for _, entry := range eb.listeners[event.Type] {
		specific = append(specific, entry.fn)
	}
	global := make([]Listener, 0, len(eb.globalListeners))
	for _, entry := range eb.globalListeners {
		global = append(global, entry.fn)
	}
	eb.mu.RUnlock()

	for _, listener := range specific {
		safeInvoke(listener, event)
	}
	for _, listener := range global {
		safeInvoke(listener, event)
	}
}

func (eb *EventBus) unsubscribe(eventType EventType, id int64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	entries := eb.listeners[eventType]
	for i, entry := range entries {
		if entry.id == id {
			eb.listeners[eventType] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (eb *EventBus) unsubscribeAll(id int64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, entry := range eb.globalListeners {
		if entry.id == id {
			eb.globalListeners = append(eb.globalListeners[:i], eb.globalListeners[i+1:]...)
			return
		}
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
