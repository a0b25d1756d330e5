package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

// ContextHandler enriches every record with fields found in the
// context (variant, run id, stage, ...) plus a fixed set of common
// attributes, then hands the record to the wrapped handler.
type ContextHandler struct {
	inner        slog.Handler
	commonFields []slog.Attr
}

// NewContextHandler wraps inner. commonFields (service name,
// environment, ...) are prepended to every record.
func NewContextHandler(inner slog.Handler, commonFields ...slog.Attr) *ContextHandler {
	return &ContextHandler{inner: inner, commonFields: commonFields}
}

// Enabled defers the level decision to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle rebuilds the record as common fields, then context fields,
// then the caller's own attributes, so caller attributes win when a
// downstream handler deduplicates keys.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	enriched := h.enrich(ctx, r, "")
	return h.inner.Handle(ctx, enriched)
}

// enrich builds the outgoing record. A non-empty module adds a
// "logger" attribute (used by ModuleHandler).
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *ContextHandler) enrich(ctx context.Context, r slog.Record, module string) slog.Record {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(h.commonFields...)
	if module != "" {
		out.AddAttrs(slog.String("logger", module))
	}
	for _, key := range allContextKeys {
		if s, ok := ctx.Value(key).(string); ok && s != "" {
			out.AddAttrs(slog.String(string(key), s))
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return out
}

// WithAttrs pushes attrs down to the wrapped handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), commonFields: h.commonFields}
}

// WithGroup pushes the group down to the wrapped handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), commonFields: h.commonFields}
}

// Unwrap exposes the wrapped handler for handler chains.
func (h *ContextHandler) Unwrap() slog.Handler { return h.inner }

var _ slog.Handler = (*ContextHandler)(nil)

// ModuleHandler is a ContextHandler that additionally filters records
// by per-package log levels. The package ("module") a record came from
// is derived from its program counter, so "runstore.redis" can log at
// debug while the rest of the process stays at info.
type ModuleHandler struct {
	ContextHandler
	moduleConfig *ModuleConfig
}

// NewModuleHandler wraps inner with per-module filtering driven by
// moduleConfig.
func NewModuleHandler(inner slog.Handler, moduleConfig *ModuleConfig, commonFields ...slog.Attr) *ModuleHandler {
	return &ModuleHandler{
		ContextHandler: ContextHandler{inner: inner, commonFields: commonFields},
		moduleConfig:   moduleConfig,
	}
}

// Enabled resolves the calling module from the stack and applies its
// configured level. slog calls Enabled before building the record, so
// this is the cheap early-out path.
func (h *ModuleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.moduleConfig.LevelFor(callerModule())
}

// Handle re-checks the level against the module derived from the
// record's own PC (more precise than the stack walk in Enabled), tags
// the record with its module, and forwards it.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *ModuleHandler) Handle(ctx context.Context, r slog.Record) error {
	module := moduleForPC(r.PC)
	if r.Level < h.moduleConfig.LevelFor(module) {
		return nil
	}
	return h.inner.Handle(ctx, h.enrich(ctx, r, module))
}

// WithAttrs pushes attrs down to the wrapped handler.
func (h *ModuleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ModuleHandler{
		ContextHandler: ContextHandler{inner: h.inner.WithAttrs(attrs), commonFields: h.commonFields},
		moduleConfig:   h.moduleConfig,
	}
}

// WithGroup pushes the group down to the wrapped handler.
func (h *ModuleHandler) WithGroup(name string) slog.Handler {
	return &ModuleHandler{
		ContextHandler: ContextHandler{inner: h.inner.WithGroup(name), commonFields: h.commonFields},
		moduleConfig:   h.moduleConfig,
	}
}

var _ slog.Handler = (*ModuleHandler)(nil)

// moduleRoot is the import path prefix stripped when deriving module
// names from function names.
const moduleRoot = "github.com/temporalab/modelconf/"

// callerModule walks up the stack past this package and slog internals
// to find the first frame belonging to another package in this module.
func callerModule() string {
	var pcs [10]uintptr
	// skip runtime.Callers, callerModule, and Enabled
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if m := moduleFromFunction(frame.Function); m != "" && !strings.HasPrefix(m, "logger") {
			return m
		}
		if !more {
			return ""
		}
	}
}

// moduleForPC resolves the module name of the frame a record was
// created in.
func moduleForPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return moduleFromFunction(frame.Function)
}

// moduleFromFunction turns a fully qualified function name into a
// dotted module name:
//
//	github.com/temporalab/modelconf/runstore.(*RedisStore).Save -> runstore
//	github.com/temporalab/modelconf/cmd/modelconf.runSweep      -> cmd.modelconf
//
// Functions outside this module map to "".
func moduleFromFunction(fn string) string {
	idx := strings.Index(fn, moduleRoot)
	if idx < 0 {
		return ""
	}
	rest := fn[idx+len(moduleRoot):]
	// drop method receivers and the function name itself
	if cut := strings.IndexByte(rest, '('); cut >= 0 {
		rest = rest[:cut]
	}
	if cut := strings.LastIndexByte(rest, '.'); cut >= 0 {
		rest = rest[:cut]
	}
	return strings.ReplaceAll(rest, "/", ".")
}
