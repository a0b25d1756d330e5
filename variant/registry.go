package variant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/temporalab/modelconf/compose"
	"github.com/temporalab/modelconf/document"
	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/logger"
	"github.com/temporalab/modelconf/persistence"
	"github.com/temporalab/modelconf/resolve"
	"github.com/temporalab/modelconf/snapshot"
	"github.com/temporalab/modelconf/version"
)

// tracerName is the instrumentation scope for composition spans.
const tracerName = "github.com/temporalab/modelconf/variant"

// Registry composes model-variant configurations. Parsed documents are cached
// until Invalidate, so repeated compositions of the same variant reread
// nothing from the repository.
type Registry struct {
	repository  persistence.DocumentRepository
	merger      *compose.Merger
	resolver    *resolve.Resolver
	bus         *events.EventBus
	tracer      trace.Tracer
	toolVersion string

	mu           sync.RWMutex
	baseCache    *document.Document
	variantCache map[string]*document.Document
}

// Option configures a Registry.
type Option func(*Registry)

// WithEventBus publishes composition lifecycle events to bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

// WithMerger replaces the default strict merger.
func WithMerger(m *compose.Merger) Option {
	return func(r *Registry) {
		r.merger = m
	}
}

// WithResolver replaces the default resolver.
func WithResolver(res *resolve.Resolver) Option {
	return func(r *Registry) {
		r.resolver = res
	}
}

// WithToolVersion stamps snapshots with a fixed tool version instead of the
// build version.
func WithToolVersion(v string) Option {
	return func(r *Registry) {
		r.toolVersion = v
	}
}

// WithTracerProvider sets the provider composition spans are created through.
// The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Registry) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// NewRegistry creates a registry backed by a document repository.
func NewRegistry(repository persistence.DocumentRepository, opts ...Option) *Registry {
	r := &Registry{
		repository:   repository,
		merger:       compose.NewMerger(),
		resolver:     resolve.NewResolver(),
		tracer:       otel.Tracer(tracerName),
		toolVersion:  version.GetVersion(),
		variantCache: make(map[string]*document.Document),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Base returns the shared base document, loading it through the repository on
// first use.
func (r *Registry) Base() (*document.Document, error) {
	if r.repository == nil {
		return nil, fmt.Errorf("registry requires a repository")
	}

	r.mu.RLock()
	if r.baseCache != nil {
		doc := r.baseCache
		r.mu.RUnlock()
		return doc, nil
	}
	r.mu.RUnlock()

	emitter := events.NewEmitter(r.bus, "", "")
	doc, err := r.repository.LoadBase()
	if err != nil {
		emitter.DocumentLoadFailed("base", r.repository.Path(""), err)
		return nil, fmt.Errorf("failed to load base document: %w", err)
	}
	emitter.DocumentLoaded("base", doc.Source())

	r.mu.Lock()
	r.baseCache = doc
	r.mu.Unlock()

	return doc, nil
}

// Variant returns the named variant document, loading it through the
// repository on first use. Unknown names surface the repository's
// ErrVariantNotFound.
func (r *Registry) Variant(name string) (*document.Document, error) {
	if r.repository == nil {
		return nil, fmt.Errorf("registry requires a repository")
	}

	r.mu.RLock()
	if cached, ok := r.variantCache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	emitter := events.NewEmitter(r.bus, name, "")
	doc, err := r.repository.LoadVariant(name)
	if err != nil {
		emitter.DocumentLoadFailed("variant", r.repository.Path(name), err)
		return nil, fmt.Errorf("failed to load variant %q: %w", name, err)
	}
	emitter.DocumentLoaded("variant", doc.Source())

	r.mu.Lock()
	r.variantCache[name] = doc
	r.mu.Unlock()

	return doc, nil
}

// List returns the available variant names, sorted.
func (r *Registry) List() ([]string, error) {
	if r.repository == nil {
		return nil, fmt.Errorf("registry requires a repository")
	}

	names, err := r.repository.ListVariants()
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	return names, nil
}

// Compose merges the base document with the named variant and the given
// overrides in order, resolves every interpolation reference, validates the
// shape of the result, and returns an immutable snapshot.
func (r *Registry) Compose(ctx context.Context, name string, overrides ...compose.Override) (*snapshot.Snapshot, error) {
	start := time.Now()
	emitter := events.NewEmitter(r.bus, name, "")
	emitter.CompositionStarted(len(overrides))

	ctx, span := r.tracer.Start(ctx, "modelconf.compose",
		trace.WithAttributes(
			attribute.String("variant.name", name),
			attribute.Int("compose.overrides", len(overrides)),
		),
	)
	defer span.End()

	snap, references, err := r.composeSnapshot(ctx, name, overrides)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.CompositionFailed(name, err)
		emitter.CompositionFailed(err, time.Since(start))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("snapshot.id", snap.ID),
		attribute.String("snapshot.digest", snap.Digest),
		attribute.Int("compose.parameters", len(snap.Params())),
		attribute.Int("compose.references", references),
	)
	span.SetStatus(codes.Ok, "")

	logger.Composition(name, len(overrides),
		"snapshot_id", snap.ID,
		"digest", snap.Digest[:8],
	)
	emitter.CompositionCompleted(snap.ID, snap.Digest, len(snap.Params()), references, time.Since(start))

	return snap, nil
}

// composeSnapshot runs the composition pipeline without the logging and
// event bookkeeping. The int return counts the reference sites the resolve
// pass substituted.
func (r *Registry) composeSnapshot(ctx context.Context, name string, overrides []compose.Override) (*snapshot.Snapshot, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	base, err := r.Base()
	if err != nil {
		return nil, 0, err
	}
	variantDoc, err := r.Variant(name)
	if err != nil {
		return nil, 0, err
	}

	merged, err := r.merger.Merge(base, variantDoc)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to compose variant %q: %w", name, err)
	}
	if len(overrides) > 0 {
		merged, err = compose.Apply(merged, overrides...)
		if err != nil {
			return nil, 0, err
		}
	}

	references := countReferences(merged.Map())
	_, resolveSpan := r.tracer.Start(ctx, "modelconf.resolve",
		trace.WithAttributes(attribute.Int("resolve.references", references)),
	)
	resolved, err := r.resolver.Resolve(merged)
	if err != nil {
		resolveSpan.RecordError(err)
		resolveSpan.SetStatus(codes.Error, err.Error())
		resolveSpan.End()
		return nil, 0, fmt.Errorf("failed to resolve variant %q: %w", name, err)
	}
	resolveSpan.SetStatus(codes.Ok, "")
	resolveSpan.End()

	def, err := NewDefinition(resolved)
	if err != nil {
		return nil, 0, err
	}
	if def.Name != name {
		return nil, 0, &DefinitionError{
			Path:    KeyName,
			Message: fmt.Sprintf("document names %q, expected %q", def.Name, name),
		}
	}

	snap, err := snapshot.New(resolved, name, r.toolVersion)
	if err != nil {
		return nil, 0, err
	}
	return snap, references, nil
}

// countReferences tallies ${...} occurrences across a tree, including inside
// sequence elements.
func countReferences(value any) int {
	switch v := value.(type) {
	case map[string]any:
		n := 0
		for _, elem := range v {
			n += countReferences(elem)
		}
		return n
	case []any:
		n := 0
		for _, elem := range v {
			n += countReferences(elem)
		}
		return n
	case string:
		return len(document.References(v))
	default:
		return 0
	}
}

// Invalidate drops the cached documents so the next load rereads the
// repository. Call after editing the conf tree.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseCache = nil
	r.variantCache = make(map[string]*document.Document)
}
