package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/temporalab/modelconf/events"
)

// spanEntry tracks an in-flight span and its context.
type spanEntry struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// pendingEnd buffers a sweep completion that arrived before the corresponding
// start. The EventBus dispatches on a worker pool, so completion events can
// race ahead of start events.
type pendingEnd struct {
	errMsg string // empty means success
	attrs  []attribute.KeyValue
}

// OTelEventListener converts toolkit events into OTel spans in real time.
// Sweeps become root spans with one child span per combination; store,
// validation, and document-load events become spans of their own. It does
// not create composition spans: the registry traces its own compose and
// resolve passes on the caller's context. The listener is safe for
// concurrent use and tolerates out-of-order event delivery.
type OTelEventListener struct {
	tracer trace.Tracer

	mu          sync.Mutex
	sweeps      map[string]*spanEntry  // sweepID → root span + ctx
	pendingEnds map[string]*pendingEnd // buffered completions for out-of-order delivery
}

// NewOTelEventListener creates a listener that creates OTel spans from
// toolkit events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:      tracer,
		sweeps:      make(map[string]*spanEntry),
		pendingEnds: make(map[string]*pendingEnd),
	}
}

// OnEvent handles a single toolkit event and creates or completes OTel spans
// accordingly. It is safe for concurrent use and can be passed to
// EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	//nolint:exhaustive // Composition passes are traced by the registry itself
	switch evt.Type {
	case events.EventSweepStarted:
		l.startSweep(evt)
	case events.EventSweepRunCompleted:
		l.recordSweepRun(evt)
	case events.EventSweepCompleted:
		l.endSweep(evt)
	case events.EventSnapshotSaved:
		l.recordStoreOp(evt, "modelconf.store.save")
	case events.EventSnapshotLoaded:
		l.recordStoreOp(evt, "modelconf.store.load")
	case events.EventSnapshotDeleted:
		l.recordStoreOp(evt, "modelconf.store.delete")
	case events.EventValidationPassed, events.EventValidationFailed:
		l.recordValidation(evt)
	case events.EventDocumentLoaded, events.EventDocumentLoadFailed:
		l.recordDocumentLoad(evt)
	}
}

// sweepCtx returns the context of the sweep root span (to parent child
// spans). Falls back to context.Background() if the sweep is unknown.
func (l *OTelEventListener) sweepCtx(sweepID string) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.sweeps[sweepID]; ok {
		return entry.ctx
	}
	return context.Background()
}

// startSweep opens the root span for a sweep. If the completion was already
// buffered (out-of-order delivery), the span is immediately ended.
func (l *OTelEventListener) startSweep(evt *events.Event) {
	data, ok := evt.Data.(*events.SweepStartedData)
	if !ok {
		return
	}
	ctx, span := l.tracer.Start(context.Background(), "modelconf.sweep",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(
			attribute.String("sweep.id", evt.SweepID),
			attribute.String("variant.name", evt.Variant),
			attribute.Int("sweep.combinations", data.Combinations),
			attribute.Int("sweep.workers", data.Workers),
		),
	)

	l.mu.Lock()
	pe, havePending := l.pendingEnds[evt.SweepID]
	if havePending {
		delete(l.pendingEnds, evt.SweepID)
	} else {
		l.sweeps[evt.SweepID] = &spanEntry{span: span, ctx: ctx}
	}
	l.mu.Unlock()

	if havePending {
		span.SetAttributes(pe.attrs...)
		if pe.errMsg != "" {
			span.SetStatus(codes.Error, pe.errMsg)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// endSweep ends the root span for a sweep. If the span hasn't started yet
// (out-of-order delivery), the completion is buffered and applied when
// startSweep creates the span.
func (l *OTelEventListener) endSweep(evt *events.Event) {
	data, ok := evt.Data.(*events.SweepCompletedData)
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("sweep.succeeded", data.Succeeded),
		attribute.Int("sweep.failed", data.Failed),
		attribute.Int64("sweep.duration_ms", data.Duration.Milliseconds()),
	}
	errMsg := ""
	if data.Failed > 0 {
		errMsg = fmt.Sprintf("%d of %d combinations failed", data.Failed, data.Succeeded+data.Failed)
	}

	l.mu.Lock()
	entry, ok := l.sweeps[evt.SweepID]
	if ok {
		delete(l.sweeps, evt.SweepID)
	} else {
		l.pendingEnds[evt.SweepID] = &pendingEnd{errMsg: errMsg, attrs: attrs}
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	entry.span.SetAttributes(attrs...)
	if errMsg != "" {
		entry.span.SetStatus(codes.Error, errMsg)
	} else {
		entry.span.SetStatus(codes.Ok, "")
	}
	entry.span.End()
}

// recordSpan emits a span for an operation that already finished, backdating
// the start so the span duration matches the reported one.
func (l *OTelEventListener) recordSpan(
	evt *events.Event, name string, d time.Duration, errMsg string, attrs ...attribute.KeyValue,
) {
	parentCtx := l.sweepCtx(evt.SweepID)
	_, span := l.tracer.Start(parentCtx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(evt.Timestamp.Add(-d)),
		trace.WithAttributes(attrs...),
	)
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(evt.Timestamp))
}

func (l *OTelEventListener) recordSweepRun(evt *events.Event) {
	data, ok := evt.Data.(*events.SweepRunCompletedData)
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("run.index", data.Index),
		attribute.Int64("run.duration_ms", data.Duration.Milliseconds()),
	}
	if data.SnapshotID != "" {
		attrs = append(attrs, attribute.String("snapshot.id", data.SnapshotID))
	}
	errMsg := ""
	if data.Error != nil {
		errMsg = data.Error.Error()
	}
	l.recordSpan(evt, "modelconf.sweep.run", data.Duration, errMsg, attrs...)
}

func (l *OTelEventListener) recordStoreOp(evt *events.Event, name string) {
	data, ok := evt.Data.(*events.StoreEventData)
	if !ok {
		return
	}
	l.recordSpan(evt, name, data.Duration, "",
		attribute.String("store.backend", data.Backend),
		attribute.String("snapshot.id", data.SnapshotID),
	)
}

func (l *OTelEventListener) recordValidation(evt *events.Event) {
	data, ok := evt.Data.(*events.ValidationEventData)
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("variant.name", evt.Variant),
		attribute.Int("validation.rules", data.Rules),
		attribute.Int("validation.violations", len(data.Violations)),
	}
	errMsg := ""
	if evt.Type == events.EventValidationFailed {
		errMsg = fmt.Sprintf("%d validation violations", len(data.Violations))
	}
	l.recordSpan(evt, "modelconf.validate", data.Duration, errMsg, attrs...)
}

// recordDocumentLoad emits a zero-length marker span; load events carry no
// duration.
func (l *OTelEventListener) recordDocumentLoad(evt *events.Event) {
	switch data := evt.Data.(type) {
	case *events.DocumentLoadedData:
		l.recordSpan(evt, "modelconf.document.load", 0, "",
			attribute.String("document.kind", data.Kind),
			attribute.String("document.source", data.Source),
		)
	case *events.DocumentLoadFailedData:
		l.recordSpan(evt, "modelconf.document.load", 0, data.Error.Error(),
			attribute.String("document.kind", data.Kind),
			attribute.String("document.source", data.Source),
		)
	}
}
