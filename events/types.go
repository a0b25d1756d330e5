package events

import "time"

// EventType identifies the type of event emitted by the toolkit.
type EventType string

const (
	// EventDocumentLoaded marks a configuration document load from a repository.
	EventDocumentLoaded EventType = "document.loaded"
	// EventDocumentLoadFailed marks a configuration document load failure.
	EventDocumentLoadFailed EventType = "document.load.failed"

	// EventCompositionStarted marks composition start.
	EventCompositionStarted EventType = "composition.started"
	// EventCompositionCompleted marks composition completion.
	EventCompositionCompleted EventType = "composition.completed"
	// EventCompositionFailed marks composition failure.
	EventCompositionFailed EventType = "composition.failed"

	// EventSnapshotSaved marks a snapshot write to a run store.
	EventSnapshotSaved EventType = "snapshot.saved"
	// EventSnapshotLoaded marks a snapshot read from a run store.
	EventSnapshotLoaded EventType = "snapshot.loaded"
	// EventSnapshotDeleted marks a snapshot removal from a run store.
	EventSnapshotDeleted EventType = "snapshot.deleted"

	// EventValidationPassed marks a composed document passing validation.
	EventValidationPassed EventType = "validation.passed"
	// EventValidationFailed marks a composed document failing validation.
	EventValidationFailed EventType = "validation.failed"

	// EventSweepStarted marks sweep start.
	EventSweepStarted EventType = "sweep.started"
	// EventSweepRunCompleted marks completion of one sweep combination.
	EventSweepRunCompleted EventType = "sweep.run.completed"
	// EventSweepCompleted marks sweep completion.
	EventSweepCompleted EventType = "sweep.completed"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a toolkit event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Variant   string
	SweepID   string
	Data      EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// --- Document events ---

// DocumentLoadedData contains data for document load events. Kind is "base"
// or "variant".
type DocumentLoadedData struct {
	baseEventData
	Kind   string
	Source string
}

// DocumentLoadFailedData contains data for document load failures.
type DocumentLoadFailedData struct {
	baseEventData
	Kind   string
	Source string
	Error  error
}

// --- Composition events (kept separate: each phase has distinct fields) ---

// CompositionStartedData contains data for composition start events.
type CompositionStartedData struct {
	baseEventData
	Overrides int
}

// CompositionCompletedData contains data for composition completion events.
// References counts the interpolation references the resolve pass substituted.
type CompositionCompletedData struct {
	baseEventData
	SnapshotID string
	Digest     string
	Parameters int
	References int
	Duration   time.Duration
}

// CompositionFailedData contains data for composition failure events.
type CompositionFailedData struct {
	baseEventData
	Error    error
	Duration time.Duration
}

// --- Store events (consolidated) ---

// StoreEventData is the unified payload for snapshot store events
// (saved, loaded, deleted). Backend names the store implementation
// ("memory", "redis", "s3").
type StoreEventData struct {
	baseEventData
	Backend    string
	SnapshotID string
	Duration   time.Duration
}

// --- Validation events (consolidated) ---

// ValidationEventData is the unified payload for validation events
// (passed, failed). Violations is set on failed.
type ValidationEventData struct {
	baseEventData
	Rules      int
	Violations []string
	Duration   time.Duration
}

// --- Sweep events ---

// SweepStartedData contains data for sweep start events.
type SweepStartedData struct {
	baseEventData
	Combinations int
	Workers      int
}

// SweepRunCompletedData contains data for per-combination completion events.
// Error is set when the combination failed; SnapshotID when it succeeded.
type SweepRunCompletedData struct {
	baseEventData
	Index      int
	SnapshotID string
	Error      error
	Duration   time.Duration
}

// SweepCompletedData contains data for sweep completion events.
type SweepCompletedData struct {
	baseEventData
	Succeeded int
	Failed    int
	Duration  time.Duration
}
