package telemetry

import (
	"context"
	"os"
	"regexp"
)

type traceContextKey struct{}

// traceparentRe matches the W3C Trace Context traceparent header:
// version-trace_id-parent_id-trace_flags, all lowercase hex.
var traceparentRe = regexp.MustCompile(`^[0-9a-f]{2}-[0-9a-f]{32}-[0-9a-f]{16}-[0-9a-f]{2}$`)

// TraceContext holds W3C trace headers handed to the tool by its caller.
// Recorded sweeps exported with this context become children of the caller's
// trace instead of starting a fresh one.
type TraceContext struct {
	Traceparent string // W3C traceparent header
	Tracestate  string // W3C tracestate header
}

// IsEmpty returns true when no trace data is present.
func (tc TraceContext) IsEmpty() bool {
	return tc.Traceparent == "" && tc.Tracestate == ""
}

// TraceContextFromEnv reads the TRACEPARENT and TRACESTATE environment
// variables, the convention CI systems use to hand a trace to child
// processes. Invalid traceparent values are silently discarded.
func TraceContextFromEnv() TraceContext {
	tc := TraceContext{
		Tracestate: os.Getenv("TRACESTATE"),
	}
	if tp := os.Getenv("TRACEPARENT"); traceparentRe.MatchString(tp) {
		tc.Traceparent = tp
	}
	return tc
}

// ContextWithTrace stores a TraceContext in a Go context.
func ContextWithTrace(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// TraceContextFromContext retrieves a TraceContext from a Go context.
// Returns an empty TraceContext if none is stored.
func TraceContextFromContext(ctx context.Context) TraceContext {
	tc, _ := ctx.Value(traceContextKey{}).(TraceContext)
	return tc
}
