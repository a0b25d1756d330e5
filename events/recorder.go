package events

import "sync"

// Recorder captures published events for later inspection or export.
// Subscribe its Record method on a bus with SubscribeAll; Events returns
// everything captured so far.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an event. It matches the Listener signature.
func (r *Recorder) Record(event *Event) {
	if event == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, *event)
	r.mu.Unlock()
}

// Events returns a copy of the captured events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of captured events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset discards the captured events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
