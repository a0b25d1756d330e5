package events

import "time"

// Emitter provides helpers for publishing toolkit events with shared metadata.
// A nil Emitter or an Emitter without a bus discards every event, so callers
// never need to guard emission sites.
type Emitter struct {
	bus     *EventBus
	variant string
	sweepID string
}

// NewEmitter creates an event emitter bound to a variant. The sweepID is
// empty for standalone compositions.
func NewEmitter(bus *EventBus, variant, sweepID string) *Emitter {
	return &Emitter{
		bus:     bus,
		variant: variant,
		sweepID: sweepID,
	}
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}

	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Variant:   e.variant,
		SweepID:   e.sweepID,
		Data:      data,
	}

	e.bus.Publish(event)
}

// DocumentLoaded emits the document.loaded event.
func (e *Emitter) DocumentLoaded(kind, source string) {
	e.emit(EventDocumentLoaded, &DocumentLoadedData{
		Kind:   kind,
		Source: source,
	})
}

// DocumentLoadFailed emits the document.load.failed event.
func (e *Emitter) DocumentLoadFailed(kind, source string, err error) {
	e.emit(EventDocumentLoadFailed, &DocumentLoadFailedData{
		Kind:   kind,
		Source: source,
		Error:  err,
	})
}

// CompositionStarted emits the composition.started event.
func (e *Emitter) CompositionStarted(overrides int) {
	e.emit(EventCompositionStarted, &CompositionStartedData{
		Overrides: overrides,
	})
}

// CompositionCompleted emits the composition.completed event.
func (e *Emitter) CompositionCompleted(snapshotID, digest string, parameters, references int, duration time.Duration) {
	e.emit(EventCompositionCompleted, &CompositionCompletedData{
		SnapshotID: snapshotID,
		Digest:     digest,
		Parameters: parameters,
		References: references,
		Duration:   duration,
	})
}

// CompositionFailed emits the composition.failed event.
func (e *Emitter) CompositionFailed(err error, duration time.Duration) {
	e.emit(EventCompositionFailed, &CompositionFailedData{
		Error:    err,
		Duration: duration,
	})
}

// SnapshotSaved emits the snapshot.saved event.
func (e *Emitter) SnapshotSaved(backend, snapshotID string, duration time.Duration) {
	e.emit(EventSnapshotSaved, &StoreEventData{
		Backend:    backend,
		SnapshotID: snapshotID,
		Duration:   duration,
	})
}

// SnapshotLoaded emits the snapshot.loaded event.
func (e *Emitter) SnapshotLoaded(backend, snapshotID string, duration time.Duration) {
	e.emit(EventSnapshotLoaded, &StoreEventData{
		Backend:    backend,
		SnapshotID: snapshotID,
		Duration:   duration,
	})
}

// SnapshotDeleted emits the snapshot.deleted event.
func (e *Emitter) SnapshotDeleted(backend, snapshotID string, duration time.Duration) {
	e.emit(EventSnapshotDeleted, &StoreEventData{
		Backend:    backend,
		SnapshotID: snapshotID,
		Duration:   duration,
	})
}

// ValidationPassed emits the validation.passed event.
func (e *Emitter) ValidationPassed(rules int, duration time.Duration) {
	e.emit(EventValidationPassed, &ValidationEventData{
		Rules:    rules,
		Duration: duration,
	})
}

// ValidationFailed emits the validation.failed event.
func (e *Emitter) ValidationFailed(rules int, violations []string, duration time.Duration) {
	e.emit(EventValidationFailed, &ValidationEventData{
		Rules:      rules,
		Violations: violations,
		Duration:   duration,
	})
}

// SweepStarted emits the sweep.started event.
func (e *Emitter) SweepStarted(combinations, workers int) {
	e.emit(EventSweepStarted, &SweepStartedData{
		Combinations: combinations,
		Workers:      workers,
	})
}

// SweepRunCompleted emits the sweep.run.completed event.
func (e *Emitter) SweepRunCompleted(index int, snapshotID string, err error, duration time.Duration) {
	e.emit(EventSweepRunCompleted, &SweepRunCompletedData{
		Index:      index,
		SnapshotID: snapshotID,
		Error:      err,
		Duration:   duration,
	})
}

// SweepCompleted emits the sweep.completed event.
func (e *Emitter) SweepCompleted(succeeded, failed int, duration time.Duration) {
	e.emit(EventSweepCompleted, &SweepCompletedData{
		Succeeded: succeeded,
		Failed:    failed,
		Duration:  duration,
	})
}
