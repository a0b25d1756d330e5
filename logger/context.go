package logger

import "context"

// contextKey is unexported so values stored by this package cannot
// collide with other packages' context values.
type contextKey string

// Context keys recognized by ContextHandler. A value stored under one
// of these keys appears as an attribute on every record logged with
// that context.
const (
	// ContextKeyVariant names the model variant being composed.
	ContextKeyVariant contextKey = "variant"
	// ContextKeyRunID names the snapshot or sweep run being produced.
	ContextKeyRunID contextKey = "run_id"
	// ContextKeySweepID groups runs belonging to one sweep.
	ContextKeySweepID contextKey = "sweep_id"
	// ContextKeyStore names the run store backend ("redis", "s3", "memory").
	ContextKeyStore contextKey = "store"
	// ContextKeyStage names the pipeline stage ("compose", "resolve", "validate").
	ContextKeyStage contextKey = "stage"
	// ContextKeyRequestID identifies a single CLI or HTTP request.
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyCorrelationID ties records to a distributed trace.
	ContextKeyCorrelationID contextKey = "correlation_id"
	// ContextKeyEnvironment names the deployment environment.
	ContextKeyEnvironment contextKey = "environment"
)

// allContextKeys drives extraction in the handlers and in
// ExtractLoggingFields. Order here is attribute order in the record.
var allContextKeys = [...]contextKey{
	ContextKeyVariant,
	ContextKeyRunID,
	ContextKeySweepID,
	ContextKeyStore,
	ContextKeyStage,
	ContextKeyRequestID,
	ContextKeyCorrelationID,
	ContextKeyEnvironment,
}

// WithVariant stores the variant name for log enrichment.
func WithVariant(ctx context.Context, variant string) context.Context {
	return context.WithValue(ctx, ContextKeyVariant, variant)
}

// WithRunID stores the run id for log enrichment.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// WithSweepID stores the sweep id for log enrichment.
func WithSweepID(ctx context.Context, sweepID string) context.Context {
	return context.WithValue(ctx, ContextKeySweepID, sweepID)
}

// WithStore stores the run store backend name for log enrichment.
func WithStore(ctx context.Context, store string) context.Context {
	return context.WithValue(ctx, ContextKeyStore, store)
}

// WithStage stores the pipeline stage for log enrichment.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ContextKeyStage, stage)
}

// WithRequestID stores the request id for log enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithCorrelationID stores the correlation id for log enrichment.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
}

// WithEnvironment stores the environment name for log enrichment.
func WithEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, ContextKeyEnvironment, environment)
}

// LoggingFields carries every context field this package understands,
// for bulk get/set through WithLoggingContext and ExtractLoggingFields.
type LoggingFields struct {
	Variant       string
	RunID         string
	SweepID       string
	Store         string
	Stage         string
	RequestID     string
	CorrelationID string
	Environment   string
}

// byKey returns pointers into f indexed by context key, shared by the
// bulk set and extract paths.
func (f *LoggingFields) byKey() map[contextKey]*string {
	return map[contextKey]*string{
		ContextKeyVariant:       &f.Variant,
		ContextKeyRunID:         &f.RunID,
		ContextKeySweepID:       &f.SweepID,
		ContextKeyStore:         &f.Store,
		ContextKeyStage:         &f.Stage,
		ContextKeyRequestID:     &f.RequestID,
		ContextKeyCorrelationID: &f.CorrelationID,
		ContextKeyEnvironment:   &f.Environment,
	}
}

// WithLoggingContext stores every non-empty field of fields in the
// context in one call. A nil fields is a no-op.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	slots := fields.byKey()
	for _, key := range allContextKeys {
		if v := *slots[key]; v != "" {
			ctx = context.WithValue(ctx, key, v)
		}
	}
	return ctx
}

// ExtractLoggingFields reads back every recognized field from the
// context. Absent or non-string values leave the field empty.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	var fields LoggingFields
	slots := fields.byKey()
	for _, key := range allContextKeys {
		if s, ok := ctx.Value(key).(string); ok {
			*slots[key] = s
		}
	}
	return fields
}
