// Package telemetry provides OpenTelemetry integration for the configuration
// toolkit, including TracerProvider management, an event-to-span listener,
// and OTLP export of recorded sweeps.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope reported on every span this package produces.
const (
	InstrumentationName    = "github.com/temporalab/modelconf"
	InstrumentationVersion = "1.0.0"
)

// EndpointEnv names the environment variable Init reads the OTLP
// endpoint from.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Tracer returns this toolkit's tracer from tp, falling back to the
// global provider when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(InstrumentationVersion))
}

// NewTracerProvider builds a batching TracerProvider exporting OTLP over
// HTTP to endpoint. Callers own the provider and must Shutdown it.
func NewTracerProvider(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", InstrumentationVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// Init wires up tracing from the environment. When EndpointEnv is set it
// creates an OTLP/HTTP TracerProvider, installs it as the global provider,
// and configures propagation; when unset it returns nil and tracing stays
// disabled.
func Init(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	endpoint := os.Getenv(EndpointEnv)
	if endpoint == "" {
		return nil, nil
	}

	tp, err := NewTracerProvider(ctx, endpoint, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	SetupPropagation()
	return tp, nil
}

// Shutdown flushes and stops a provider returned by Init. A nil provider is
// a no-op, so callers can defer it unconditionally.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// SetupPropagation installs a composite global propagator for the W3C
// traceparent and baggage headers, matching the TRACEPARENT hand-off the
// sweep exporter reads in CI.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
