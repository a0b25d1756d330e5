package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/version"
)

// Exporter sends spans to an observability backend.
type Exporter interface {
	Export(ctx context.Context, spans []*Span) error
	// Shutdown flushes anything still pending and releases resources.
	Shutdown(ctx context.Context) error
}

// Span is a trace span in the OpenTelemetry model. Trace and span IDs are
// hex-encoded (16 and 8 bytes respectively); ParentSpanID is empty on the
// root span.
type Span struct {
	TraceID      string         `json:"traceId"`
	SpanID       string         `json:"spanId"`
	ParentSpanID string         `json:"parentSpanId,omitempty"`
	Name         string         `json:"name"`
	Kind         SpanKind       `json:"kind"`
	StartTime    time.Time      `json:"startTimeUnixNano"`
	EndTime      time.Time      `json:"endTimeUnixNano"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Status       *SpanStatus    `json:"status,omitempty"`
	Events       []*SpanEvent   `json:"events,omitempty"`
}

// SpanKind mirrors the OTLP span kind enumeration.
type SpanKind int

const (
	SpanKindUnspecified SpanKind = iota
	SpanKindInternal
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// SpanStatus carries the OTLP status code and an optional message.
type SpanStatus struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// StatusCode mirrors the OTLP status code enumeration.
type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOk
	StatusCodeError
)

// SpanEvent is a timestamped annotation attached to a span.
type SpanEvent struct {
	Name       string         `json:"name"`
	Time       time.Time      `json:"timeUnixNano"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Resource identifies the entity producing the telemetry.
type Resource struct {
	Attributes map[string]any `json:"attributes"`
}

// DefaultResource returns a default resource for the toolkit.
func DefaultResource() *Resource {
	return &Resource{
		Attributes: map[string]any{
			"service.name":    "modelconf",
			"service.version": version.GetVersion(),
			"telemetry.sdk":   "modelconf-telemetry",
		},
	}
}

// ResourceWithVariant returns a default resource with the variant.name
// attribute set.
func ResourceWithVariant(variant string) *Resource {
	r := DefaultResource()
	r.Attributes["variant.name"] = variant
	return r
}

// EventConverter converts recorded toolkit events to OTLP spans.
type EventConverter struct {
	// Resource is the resource to attach to spans.
	Resource *Resource
}

// NewEventConverter creates a new event converter.
func NewEventConverter(resource *Resource) *EventConverter {
	if resource == nil {
		resource = DefaultResource()
	}
	return &EventConverter{Resource: resource}
}

// ConvertSweep converts a recorded sweep's events to spans. The sweep becomes
// the root span, with combinations, compositions, store writes, and
// validations as child spans. The trace ID is derived from the sweep ID, so
// converting the same recording twice yields the same trace.
func (c *EventConverter) ConvertSweep(sweepID string, sweepEvents []events.Event) ([]*Span, error) {
	if len(sweepEvents) == 0 {
		return nil, nil
	}
	traceID := generateTraceID(sweepID)
	return c.buildTrace(sweepID, sweepEvents, traceID, "")
}

// ConvertSweepWithParent converts a recorded sweep's events to spans, using
// the provided trace context as the parent trace instead of deriving a fresh
// one from the sweep ID. If traceCtx is nil or has an empty Traceparent, it
// falls back to ConvertSweep behavior.
func (c *EventConverter) ConvertSweepWithParent(
	sweepID string, sweepEvents []events.Event, traceCtx *TraceContext,
) ([]*Span, error) {
	if traceCtx == nil || traceCtx.Traceparent == "" {
		return c.ConvertSweep(sweepID, sweepEvents)
	}

	parentTraceID, parentSpanID, ok := parseTraceparent(traceCtx.Traceparent)
	if !ok {
		return c.ConvertSweep(sweepID, sweepEvents)
	}

	if len(sweepEvents) == 0 {
		return nil, nil
	}

	return c.buildTrace(sweepID, sweepEvents, parentTraceID, parentSpanID)
}

// buildTrace creates the root sweep span and converts the remaining events
// into child spans. parentSpanID is set on the root span when propagating an
// inbound trace context.
func (c *EventConverter) buildTrace(
	sweepID string, sweepEvents []events.Event, traceID, parentSpanID string,
) ([]*Span, error) {
	rootSpanID := generateSpanID(sweepID + ":root")

	// Event timestamps bound the root span; the sweep start and completion
	// events tighten the bounds when present.
	var startTime, endTime time.Time
	for i := range sweepEvents {
		ts := sweepEvents[i].Timestamp
		if startTime.IsZero() || ts.Before(startTime) {
			startTime = ts
		}
		if endTime.IsZero() || ts.After(endTime) {
			endTime = ts
		}
	}

	rootSpan := &Span{
		TraceID:      traceID,
		SpanID:       rootSpanID,
		ParentSpanID: parentSpanID,
		Name:         "sweep",
		Kind:         SpanKindInternal,
		StartTime:    startTime,
		EndTime:      endTime,
		Attributes: map[string]any{
			"sweep.id": sweepID,
		},
		Status: &SpanStatus{Code: StatusCodeOk},
	}

	spans := []*Span{rootSpan}
	for i := range sweepEvents {
		span := c.convertEvent(traceID, rootSpanID, &sweepEvents[i], rootSpan)
		if span != nil {
			spans = append(spans, span)
		}
	}

	return spans, nil
}

// convertEvent converts a single event to a child span or folds it into the
// root span.
func (c *EventConverter) convertEvent(
	traceID, rootSpanID string, evt *events.Event, root *Span,
) *Span {
	//nolint:exhaustive // Start markers carry no duration and produce no spans
	switch evt.Type {
	case events.EventSweepStarted:
		c.applySweepStart(evt, root)
		return nil
	case events.EventSweepCompleted:
		c.applySweepEnd(evt, root)
		return nil
	case events.EventSweepRunCompleted:
		return c.runSpan(traceID, rootSpanID, evt)
	case events.EventCompositionCompleted, events.EventCompositionFailed:
		return c.composeSpan(traceID, rootSpanID, evt)
	case events.EventSnapshotSaved:
		return c.storeSpan(traceID, rootSpanID, evt, "store.save")
	case events.EventSnapshotLoaded:
		return c.storeSpan(traceID, rootSpanID, evt, "store.load")
	case events.EventSnapshotDeleted:
		return c.storeSpan(traceID, rootSpanID, evt, "store.delete")
	case events.EventValidationPassed, events.EventValidationFailed:
		return c.validationSpan(traceID, rootSpanID, evt)
	case events.EventDocumentLoaded, events.EventDocumentLoadFailed:
		c.attachDocumentEvent(evt, root)
		return nil
	default:
		return nil
	}
}

func (c *EventConverter) applySweepStart(evt *events.Event, root *Span) {
	data, ok := evt.Data.(*events.SweepStartedData)
	if !ok {
		return
	}
	root.StartTime = evt.Timestamp
	if evt.Variant != "" {
		root.Attributes["variant.name"] = evt.Variant
	}
	root.Attributes["sweep.combinations"] = data.Combinations
	root.Attributes["sweep.workers"] = data.Workers
}

func (c *EventConverter) applySweepEnd(evt *events.Event, root *Span) {
	data, ok := evt.Data.(*events.SweepCompletedData)
	if !ok {
		return
	}
	root.EndTime = evt.Timestamp
	root.Attributes["sweep.succeeded"] = data.Succeeded
	root.Attributes["sweep.failed"] = data.Failed
	if data.Failed > 0 {
		root.Status = &SpanStatus{
			Code:    StatusCodeError,
			Message: fmt.Sprintf("%d of %d combinations failed", data.Failed, data.Succeeded+data.Failed),
		}
	}
}

// runSpan backdates a span over one combination; the completion event is the
// only record of it, so the start is reconstructed from the duration.
func (c *EventConverter) runSpan(traceID, parentSpanID string, evt *events.Event) *Span {
	data, ok := evt.Data.(*events.SweepRunCompletedData)
	if !ok {
		return nil
	}

	span := &Span{
		TraceID:      traceID,
		SpanID:       generateSpanID(evt.SweepID + ":run:" + strconv.Itoa(data.Index)),
		ParentSpanID: parentSpanID,
		Name:         "sweep.run",
		Kind:         SpanKindInternal,
		StartTime:    evt.Timestamp.Add(-data.Duration),
		EndTime:      evt.Timestamp,
		Attributes: map[string]any{
			"run.index":       data.Index,
			"run.duration_ms": data.Duration.Milliseconds(),
		},
		Status: &SpanStatus{Code: StatusCodeOk},
	}
	if data.SnapshotID != "" {
		span.Attributes["snapshot.id"] = data.SnapshotID
	}
	if data.Error != nil {
		span.Status = &SpanStatus{
			Code:    StatusCodeError,
			Message: data.Error.Error(),
		}
	}
	return span
}

func (c *EventConverter) composeSpan(traceID, parentSpanID string, evt *events.Event) *Span {
	switch data := evt.Data.(type) {
	case *events.CompositionCompletedData:
		return &Span{
			TraceID:      traceID,
			SpanID:       generateSpanID(evt.SweepID + ":compose:" + data.SnapshotID),
			ParentSpanID: parentSpanID,
			Name:         "compose",
			Kind:         SpanKindInternal,
			StartTime:    evt.Timestamp.Add(-data.Duration),
			EndTime:      evt.Timestamp,
			Attributes: map[string]any{
				"variant.name":       evt.Variant,
				"snapshot.id":        data.SnapshotID,
				"snapshot.digest":    data.Digest,
				"compose.parameters": data.Parameters,
				"compose.references": data.References,
			},
			Status: &SpanStatus{Code: StatusCodeOk},
		}
	case *events.CompositionFailedData:
		return &Span{
			TraceID:      traceID,
			SpanID:       generateSpanID(evt.SweepID + ":compose:failed:" + evt.Timestamp.Format(time.RFC3339Nano)),
			ParentSpanID: parentSpanID,
			Name:         "compose",
			Kind:         SpanKindInternal,
			StartTime:    evt.Timestamp.Add(-data.Duration),
			EndTime:      evt.Timestamp,
			Attributes: map[string]any{
				"variant.name": evt.Variant,
			},
			Status: &SpanStatus{
				Code:    StatusCodeError,
				Message: data.Error.Error(),
			},
		}
	default:
		return nil
	}
}

func (c *EventConverter) storeSpan(traceID, parentSpanID string, evt *events.Event, name string) *Span {
	data, ok := evt.Data.(*events.StoreEventData)
	if !ok {
		return nil
	}
	return &Span{
		TraceID:      traceID,
		SpanID:       generateSpanID(evt.SweepID + ":" + name + ":" + data.SnapshotID),
		ParentSpanID: parentSpanID,
		Name:         name,
		Kind:         SpanKindClient,
		StartTime:    evt.Timestamp.Add(-data.Duration),
		EndTime:      evt.Timestamp,
		Attributes: map[string]any{
			"store.backend": data.Backend,
			"snapshot.id":   data.SnapshotID,
		},
		Status: &SpanStatus{Code: StatusCodeOk},
	}
}

func (c *EventConverter) validationSpan(traceID, parentSpanID string, evt *events.Event) *Span {
	data, ok := evt.Data.(*events.ValidationEventData)
	if !ok {
		return nil
	}

	span := &Span{
		TraceID:      traceID,
		SpanID:       generateSpanID(evt.SweepID + ":validate:" + evt.Variant + ":" + evt.Timestamp.Format(time.RFC3339Nano)),
		ParentSpanID: parentSpanID,
		Name:         "validate",
		Kind:         SpanKindInternal,
		StartTime:    evt.Timestamp.Add(-data.Duration),
		EndTime:      evt.Timestamp,
		Attributes: map[string]any{
			"variant.name":          evt.Variant,
			"validation.rules":      data.Rules,
			"validation.violations": len(data.Violations),
		},
		Status: &SpanStatus{Code: StatusCodeOk},
	}
	if evt.Type == events.EventValidationFailed {
		span.Status = &SpanStatus{
			Code:    StatusCodeError,
			Message: fmt.Sprintf("%d validation violations", len(data.Violations)),
		}
	}
	return span
}

// attachDocumentEvent records a document load as a timestamped event on the
// root span; loads carry no duration, so they don't warrant spans of their
// own in a recording.
func (c *EventConverter) attachDocumentEvent(evt *events.Event, root *Span) {
	switch data := evt.Data.(type) {
	case *events.DocumentLoadedData:
		root.Events = append(root.Events, &SpanEvent{
			Name: "document.loaded",
			Time: evt.Timestamp,
			Attributes: map[string]any{
				"document.kind":   data.Kind,
				"document.source": data.Source,
			},
		})
	case *events.DocumentLoadFailedData:
		root.Events = append(root.Events, &SpanEvent{
			Name: "document.load.failed",
			Time: evt.Timestamp,
			Attributes: map[string]any{
				"document.kind":   data.Kind,
				"document.source": data.Source,
				"error":           data.Error.Error(),
			},
		})
	}
}

// parseTraceparent splits a W3C traceparent header
// (version-traceid-spanid-flags) into its trace and span IDs.
func parseTraceparent(tp string) (traceID, spanID string, ok bool) {
	if !traceparentRe.MatchString(tp) {
		return "", "", false
	}
	return tp[3:35], tp[36:52], true
}

// generateTraceID derives a stable 16-byte trace ID from s, so converting
// the same recording twice yields the same trace.
func generateTraceID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// generateSpanID derives a stable 8-byte span ID from s.
func generateSpanID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
