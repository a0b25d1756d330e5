// Package prometheus provides Prometheus metrics for the configuration toolkit.
package prometheus

import (
	"errors"

	"github.com/temporalab/modelconf/compose"
	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/persistence"
	"github.com/temporalab/modelconf/resolve"
	"github.com/temporalab/modelconf/variant"
)

// MetricsListener records toolkit events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
// This method is designed to be used with EventBus.SubscribeAll.
func (l *MetricsListener) Handle(event *events.Event) {
	//exhaustive:ignore
	switch event.Type {
	case events.EventDocumentLoaded:
		RecordDocumentLoad()
	case events.EventDocumentLoadFailed:
		RecordDocumentLoadError()
	case events.EventCompositionStarted:
		RecordComposeOperation()
	case events.EventCompositionCompleted:
		l.handleCompositionCompleted(event)
	case events.EventCompositionFailed:
		l.handleCompositionFailed(event)
	case events.EventSnapshotSaved:
		l.handleSnapshotSaved(event)
	case events.EventSweepStarted:
		RecordSweepStart()
	case events.EventSweepCompleted:
		RecordSweepEnd()
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleCompositionCompleted(event *events.Event) {
	if data, ok := event.Data.(*events.CompositionCompletedData); ok {
		RecordResolve(data.Duration.Seconds())
		RecordReferencesResolved(data.References)
	}
}

func (l *MetricsListener) handleCompositionFailed(event *events.Event) {
	if data, ok := event.Data.(*events.CompositionFailedData); ok {
		RecordResolutionError(errorKind(data.Error))
	}
}

func (l *MetricsListener) handleSnapshotSaved(event *events.Event) {
	if data, ok := event.Data.(*events.StoreEventData); ok {
		RecordSnapshotSaved(data.Backend)
	}
}

// errorKind classifies a composition failure for the resolution error counter.
func errorKind(err error) string {
	var unresolved *resolve.UnresolvedReferenceError
	var cyclic *resolve.CyclicReferenceError
	var conflict *compose.MergeConflictError
	var definition *variant.DefinitionError

	switch {
	case err == nil:
		return "unknown"
	case errors.As(err, &unresolved):
		return "unresolved"
	case errors.As(err, &cyclic):
		return "cycle"
	case errors.Is(err, resolve.ErrMalformedReference):
		return "malformed"
	case errors.Is(err, resolve.ErrNonScalarInterpolation):
		return "interpolation"
	case errors.Is(err, resolve.ErrMaxDepthExceeded):
		return "depth"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &definition):
		return "definition"
	case errors.Is(err, persistence.ErrBaseNotFound), errors.Is(err, persistence.ErrVariantNotFound):
		return "load"
	default:
		return "other"
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
