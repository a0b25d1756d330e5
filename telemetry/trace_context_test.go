package telemetry

import (
	"context"
	"testing"
)

func TestTraceContextFromEnv(t *testing.T) {
	t.Setenv("TRACEPARENT", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	t.Setenv("TRACESTATE", "congo=t61rcWkgMzE")

	tc := TraceContextFromEnv()

	if tc.Traceparent != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Errorf("Traceparent = %q", tc.Traceparent)
	}
	if tc.Tracestate != "congo=t61rcWkgMzE" {
		t.Errorf("Tracestate = %q", tc.Tracestate)
	}
	if tc.IsEmpty() {
		t.Error("expected non-empty TraceContext")
	}
}

func TestTraceContextFromEnv_None(t *testing.T) {
	t.Setenv("TRACEPARENT", "")
	t.Setenv("TRACESTATE", "")

	tc := TraceContextFromEnv()

	if !tc.IsEmpty() {
		t.Errorf("expected empty TraceContext, got %+v", tc)
	}
}

func TestTraceContextFromEnv_InvalidTraceparent(t *testing.T) {
	t.Setenv("TRACEPARENT", "not-a-valid-traceparent")
	t.Setenv("TRACESTATE", "")

	tc := TraceContextFromEnv()

	if tc.Traceparent != "" {
		t.Errorf("Traceparent = %q, want empty for invalid input", tc.Traceparent)
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc := TraceContext{
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		Tracestate:  "congo=t61rcWkgMzE",
	}

	ctx := ContextWithTrace(context.Background(), tc)
	got := TraceContextFromContext(ctx)

	if got.Traceparent != tc.Traceparent {
		t.Errorf("Traceparent = %q, want %q", got.Traceparent, tc.Traceparent)
	}
	if got.Tracestate != tc.Tracestate {
		t.Errorf("Tracestate = %q, want %q", got.Tracestate, tc.Tracestate)
	}
}

func TestTraceContextFromContext_Missing(t *testing.T) {
	tc := TraceContextFromContext(context.Background())

	if !tc.IsEmpty() {
		t.Errorf("expected empty TraceContext, got %+v", tc)
	}
}

func TestParseTraceparent(t *testing.T) {
	traceID, spanID, ok := parseTraceparent("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	if !ok {
		t.Fatal("expected valid traceparent to parse")
	}
	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("traceID = %q", traceID)
	}
	if spanID != "00f067aa0ba902b7" {
		t.Errorf("spanID = %q", spanID)
	}

	if _, _, ok := parseTraceparent("garbage"); ok {
		t.Error("expected invalid traceparent to be rejected")
	}
}
