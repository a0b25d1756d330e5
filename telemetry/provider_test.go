package telemetry

import (
	"slices"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// restoreGlobals snapshots the global provider and propagator and puts
// them back when the test ends.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestTracerFallsBackToGlobal(t *testing.T) {
	if Tracer(nil) == nil {
		t.Fatal("Tracer(nil) returned nil")
	}
	if Tracer(noop.NewTracerProvider()) == nil {
		t.Fatal("Tracer with explicit provider returned nil")
	}
}

func TestSetupPropagationHandlesTraceparent(t *testing.T) {
	restoreGlobals(t)

	SetupPropagation()

	fields := otel.GetTextMapPropagator().Fields()
	if !slices.Contains(fields, "traceparent") {
		t.Errorf("propagator fields %v lack traceparent", fields)
	}
}

func TestNewTracerProviderConstructs(t *testing.T) {
	// no export happens until spans are produced, so an unreachable
	// endpoint is fine here
	tp, err := NewTracerProvider(t.Context(), "http://localhost:0/v1/traces", "test-service")
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	defer func() { _ = tp.Shutdown(t.Context()) }()

	var _ trace.TracerProvider = tp
}

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv(EndpointEnv, "")

	tp, err := Init(t.Context(), "modelconf-test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if tp != nil {
		t.Error("Init returned a provider with no endpoint configured")
	}
	if err := Shutdown(t.Context(), tp); err != nil {
		t.Fatalf("Shutdown of nil provider: %v", err)
	}
}

func TestInitInstallsGlobalProvider(t *testing.T) {
	restoreGlobals(t)
	t.Setenv(EndpointEnv, "http://localhost:0/v1/traces")

	tp, err := Init(t.Context(), "modelconf-test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if tp == nil {
		t.Fatal("Init returned nil provider with endpoint set")
	}
	defer func() { _ = Shutdown(t.Context(), tp) }()

	if otel.GetTracerProvider() != trace.TracerProvider(tp) {
		t.Error("global provider was not replaced")
	}
}
