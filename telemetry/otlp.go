package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is the slice of *http.Client the exporter needs; tests
// substitute a recording fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OTLPExporter posts spans to an OTLP/HTTP endpoint as JSON
// (v1/traces). Batch sweep recordings already carry deterministic span
// ids, so the exporter only has to serialize and ship them.
type OTLPExporter struct {
	endpoint  string
	headers   map[string]string
	resource  *Resource
	batchSize int
	client    HTTPClient

	// pending holds spans queued for the next Export; Shutdown flushes
	// them.
	pending []*Span
}

// OTLPExporterOption configures an OTLPExporter.
type OTLPExporterOption func(*OTLPExporter)

// WithHeaders adds headers to every export request (auth tokens,
// tenant ids).
func WithHeaders(headers map[string]string) OTLPExporterOption {
	return func(e *OTLPExporter) { e.headers = headers }
}

// WithResource overrides the resource attached to exported spans.
func WithResource(resource *Resource) OTLPExporterOption {
	return func(e *OTLPExporter) { e.resource = resource }
}

// WithBatchSize caps how many spans go into a single HTTP request.
func WithBatchSize(size int) OTLPExporterOption {
	return func(e *OTLPExporter) { e.batchSize = size }
}

// WithHTTPClient substitutes the HTTP client used for exports.
func WithHTTPClient(client HTTPClient) OTLPExporterOption {
	return func(e *OTLPExporter) { e.client = client }
}

const (
	defaultBatchSize = 100
	defaultTimeout   = 30 * time.Second
)

// NewOTLPExporter builds an exporter for the given endpoint
// (typically http://host:4318/v1/traces).
func NewOTLPExporter(endpoint string, opts ...OTLPExporterOption) *OTLPExporter {
	e := &OTLPExporter{
		endpoint:  endpoint,
		headers:   make(map[string]string),
		resource:  DefaultResource(),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: defaultTimeout}
	}
	return e
}

// Export ships spans to the endpoint, splitting them into requests of
// at most the configured batch size.
func (e *OTLPExporter) Export(ctx context.Context, spans []*Span) error {
	for len(spans) > 0 {
		n := len(spans)
		if e.batchSize > 0 && n > e.batchSize {
			n = e.batchSize
		}
		if err := e.post(ctx, spans[:n]); err != nil {
			return err
		}
		spans = spans[n:]
	}
	return nil
}

// Shutdown flushes any spans still queued on the exporter.
func (e *OTLPExporter) Shutdown(ctx context.Context) error {
	if len(e.pending) == 0 {
		return nil
	}
	if err := e.Export(ctx, e.pending); err != nil {
		return err
	}
	e.pending = nil
	return nil
}

func (e *OTLPExporter) post(ctx context.Context, spans []*Span) error {
	body, err := json.Marshal(newOTLPRequest(e.resource, spans))
	if err != nil {
		return fmt.Errorf("marshal OTLP payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("OTLP export failed (status %d): %s", resp.StatusCode, string(msg))
	}
	return nil
}

// Wire format per the OTLP/HTTP JSON encoding. Field names follow the
// protocol, not Go conventions.

type otlpPayload struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

type otlpResourceSpans struct {
	Resource   otlpResource    `json:"resource"`
	ScopeSpans []otlpScopeSpan `json:"scopeSpans"`
}

type otlpResource struct {
	Attributes []otlpAttribute `json:"attributes"`
}

type otlpScopeSpan struct {
	Scope otlpScope  `json:"scope"`
	Spans []otlpSpan `json:"spans"`
}

type otlpScope struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type otlpSpan struct {
	TraceID           string          `json:"traceId"`
	SpanID            string          `json:"spanId"`
	ParentSpanID      string          `json:"parentSpanId,omitempty"`
	Name              string          `json:"name"`
	Kind              int             `json:"kind"`
	StartTimeUnixNano int64           `json:"startTimeUnixNano"`
	EndTimeUnixNano   int64           `json:"endTimeUnixNano"`
	Attributes        []otlpAttribute `json:"attributes,omitempty"`
	Status            *otlpStatus     `json:"status,omitempty"`
	Events            []otlpEvent     `json:"events,omitempty"`
}

type otlpAttribute struct {
	Key   string        `json:"key"`
	Value otlpAttrValue `json:"value"`
}

type otlpAttrValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	IntValue    *int64   `json:"intValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
}

type otlpStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type otlpEvent struct {
	Name         string          `json:"name"`
	TimeUnixNano int64           `json:"timeUnixNano"`
	Attributes   []otlpAttribute `json:"attributes,omitempty"`
}

func newOTLPRequest(resource *Resource, spans []*Span) *otlpPayload {
	wire := make([]otlpSpan, len(spans))
	for i, span := range spans {
		wire[i] = wireSpan(span)
	}
	return &otlpPayload{
		ResourceSpans: []otlpResourceSpans{{
			Resource: otlpResource{Attributes: wireAttrs(resource.Attributes)},
			ScopeSpans: []otlpScopeSpan{{
				Scope: otlpScope{Name: "modelconf-telemetry", Version: InstrumentationVersion},
				Spans: wire,
			}},
		}},
	}
}

func wireSpan(span *Span) otlpSpan {
	out := otlpSpan{
		TraceID:           span.TraceID,
		SpanID:            span.SpanID,
		ParentSpanID:      span.ParentSpanID,
		Name:              span.Name,
		Kind:              int(span.Kind),
		StartTimeUnixNano: span.StartTime.UnixNano(),
		EndTimeUnixNano:   span.EndTime.UnixNano(),
		Attributes:        wireAttrs(span.Attributes),
	}
	if span.Status != nil {
		out.Status = &otlpStatus{Code: int(span.Status.Code), Message: span.Status.Message}
	}
	for _, evt := range span.Events {
		out.Events = append(out.Events, otlpEvent{
			Name:         evt.Name,
			TimeUnixNano: evt.Time.UnixNano(),
			Attributes:   wireAttrs(evt.Attributes),
		})
	}
	return out
}

func wireAttrs(attrs map[string]any) []otlpAttribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]otlpAttribute, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, otlpAttribute{Key: k, Value: wireValue(v)})
	}
	return out
}

// wireValue maps a Go value onto the OTLP AnyValue union. Types the
// union cannot carry are stringified.
func wireValue(value any) otlpAttrValue {
	switch v := value.(type) {
	case string:
		return otlpAttrValue{StringValue: &v}
	case int:
		i := int64(v)
		return otlpAttrValue{IntValue: &i}
	case int64:
		return otlpAttrValue{IntValue: &v}
	case float64:
		return otlpAttrValue{DoubleValue: &v}
	case bool:
		return otlpAttrValue{BoolValue: &v}
	default:
		s := fmt.Sprintf("%v", v)
		return otlpAttrValue{StringValue: &s}
	}
}

var _ Exporter = (*OTLPExporter)(nil)
