package variant

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/temporalab/modelconf/compose"
	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/persistence"
)

const baseYAML = `
data:
  dataset: electricity
  train:
    num_feat_dynamic_real: 3
trainer:
  epochs: 20
  learning_rate: 1e-3
`

const deeparYAML = `
name: deepar
compute_flops: false
plot_forecasts: true
params:
  epochs: ${trainer.epochs}
  num_cells: 40
  num_feat_dynamic_real: ${data.train.num_feat_dynamic_real}
`

func testRepo(t *testing.T) *persistence.MemoryRepository {
	t.Helper()
	repo := persistence.NewMemoryRepository()
	require.NoError(t, repo.RegisterBase(mustParse(t, baseYAML)))
	require.NoError(t, repo.RegisterVariant("deepar", mustParse(t, deeparYAML)))
	return repo
}

func TestRegistry_Compose(t *testing.T) {
	reg := NewRegistry(testRepo(t), WithToolVersion("1.0.0"))

	snap, err := reg.Compose(context.Background(), "deepar")
	require.NoError(t, err)

	assert.Equal(t, "deepar", snap.Variant)
	assert.Equal(t, "1.0.0", snap.ToolVersion)
	assert.Len(t, snap.Digest, 64)
	require.NoError(t, snap.Verify())

	params := snap.Params()
	require.NotNil(t, params)
	assert.Equal(t, 20, params["epochs"])
	assert.Equal(t, 40, params["num_cells"])
	assert.Equal(t, 3, params["num_feat_dynamic_real"])

	// Shared context from the base document survives composition.
	assert.Equal(t, "electricity", snap.Document().GetString("data.dataset"))
}

func TestRegistry_Compose_AppliesOverrides(t *testing.T) {
	reg := NewRegistry(testRepo(t))

	epochs, err := compose.ParseOverride("params.epochs=50")
	require.NoError(t, err)
	plot, err := compose.ParseOverride("plot_forecasts=Null")
	require.NoError(t, err)

	snap, err := reg.Compose(context.Background(), "deepar", epochs, plot)
	require.NoError(t, err)

	assert.Equal(t, 50, snap.Params()["epochs"])
	_, set := snap.PlotForecasts()
	assert.False(t, set)
}

func TestRegistry_Compose_UnknownVariant(t *testing.T) {
	reg := NewRegistry(testRepo(t))

	_, err := reg.Compose(context.Background(), "tempflow")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrVariantNotFound)
	assert.Contains(t, err.Error(), `failed to load variant "tempflow"`)
}

func TestRegistry_Compose_BaseNotFound(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	require.NoError(t, repo.RegisterVariant("deepar", mustParse(t, deeparYAML)))
	reg := NewRegistry(repo)

	_, err := reg.Compose(context.Background(), "deepar")
	assert.ErrorIs(t, err, persistence.ErrBaseNotFound)
}

func TestRegistry_Compose_NameMismatch(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.RegisterVariant("tempflow", mustParse(t, `
name: deepar
params:
  flow_type: RealNVP
`)))
	reg := NewRegistry(repo)

	_, err := reg.Compose(context.Background(), "tempflow")
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "name", defErr.Path)
	assert.Contains(t, defErr.Message, `"deepar"`)
}

func TestRegistry_Compose_MergeConflict(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	require.NoError(t, repo.RegisterBase(mustParse(t, baseYAML)))
	require.NoError(t, repo.RegisterVariant("broken", mustParse(t, `
name: broken
trainer: fast
`)))

	t.Run("strict merger rejects the collision", func(t *testing.T) {
		reg := NewRegistry(repo)

		_, err := reg.Compose(context.Background(), "broken")
		require.Error(t, err)

		var conflict *compose.MergeConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "trainer", conflict.Path.String())
	})

	t.Run("replace-on-conflict lets the variant win", func(t *testing.T) {
		reg := NewRegistry(repo, WithMerger(compose.NewMerger(compose.WithReplaceOnConflict())))

		snap, err := reg.Compose(context.Background(), "broken")
		require.NoError(t, err)
		assert.Equal(t, "fast", snap.Resolved["trainer"])
	})
}

func TestRegistry_Compose_UnresolvedReference(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	require.NoError(t, repo.RegisterBase(mustParse(t, baseYAML)))
	require.NoError(t, repo.RegisterVariant("dangling", mustParse(t, `
name: dangling
params:
  window: ${data.missing.window}
`)))
	reg := NewRegistry(repo)

	_, err := reg.Compose(context.Background(), "dangling")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to resolve variant "dangling"`)
}

func TestRegistry_Compose_ContextCanceled(t *testing.T) {
	reg := NewRegistry(testRepo(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Compose(ctx, "deepar")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_CachesDocuments(t *testing.T) {
	repo := testRepo(t)
	reg := NewRegistry(repo)

	snap, err := reg.Compose(context.Background(), "deepar")
	require.NoError(t, err)
	assert.Equal(t, 40, snap.Params()["num_cells"])

	// Edit the repository behind the registry's back. The cached document
	// still wins until Invalidate.
	require.NoError(t, repo.RegisterVariant("deepar", mustParse(t, `
name: deepar
params:
  num_cells: 99
`)))

	snap, err = reg.Compose(context.Background(), "deepar")
	require.NoError(t, err)
	assert.Equal(t, 40, snap.Params()["num_cells"])

	reg.Invalidate()

	snap, err = reg.Compose(context.Background(), "deepar")
	require.NoError(t, err)
	assert.Equal(t, 99, snap.Params()["num_cells"])
}

func TestRegistry_BaseAndVariantAccessors(t *testing.T) {
	reg := NewRegistry(testRepo(t))

	base, err := reg.Base()
	require.NoError(t, err)
	assert.Equal(t, "electricity", base.GetString("data.dataset"))

	doc, err := reg.Variant("deepar")
	require.NoError(t, err)
	assert.Equal(t, "deepar", doc.GetString("name"))

	_, err = reg.Variant("timegrad")
	assert.ErrorIs(t, err, persistence.ErrVariantNotFound)
}

func TestRegistry_List(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.RegisterVariant("timegrad", mustParse(t, `name: timegrad`)))
	require.NoError(t, repo.RegisterVariant("deepvar", mustParse(t, `name: deepvar`)))
	reg := NewRegistry(repo)

	names, err := reg.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"deepar", "deepvar", "timegrad"}, names)
}

func TestRegistry_Compose_PublishesEvents(t *testing.T) {
	bus := events.NewEventBus(events.WithWorkerPoolSize(1))
	var mu sync.Mutex
	var received []*events.Event
	bus.SubscribeAll(func(e *events.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	reg := NewRegistry(testRepo(t), WithEventBus(bus))

	snap, err := reg.Compose(context.Background(), "deepar")
	require.NoError(t, err)
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 4)

	started := received[0]
	assert.Equal(t, events.EventCompositionStarted, started.Type)
	assert.Equal(t, "deepar", started.Variant)
	assert.Empty(t, started.SweepID)

	baseLoaded := received[1]
	assert.Equal(t, events.EventDocumentLoaded, baseLoaded.Type)
	baseData, ok := baseLoaded.Data.(*events.DocumentLoadedData)
	require.True(t, ok)
	assert.Equal(t, "base", baseData.Kind)

	variantLoaded := received[2]
	assert.Equal(t, events.EventDocumentLoaded, variantLoaded.Type)
	variantData, ok := variantLoaded.Data.(*events.DocumentLoadedData)
	require.True(t, ok)
	assert.Equal(t, "variant", variantData.Kind)
	assert.Equal(t, "deepar", variantLoaded.Variant)

	completed := received[3]
	assert.Equal(t, events.EventCompositionCompleted, completed.Type)
	data, ok := completed.Data.(*events.CompositionCompletedData)
	require.True(t, ok)
	assert.Equal(t, snap.ID, data.SnapshotID)
	assert.Equal(t, snap.Digest, data.Digest)
	assert.Equal(t, 3, data.Parameters)
	assert.Equal(t, 2, data.References)
}

func TestRegistry_Compose_PublishesFailureEvents(t *testing.T) {
	bus := events.NewEventBus(events.WithWorkerPoolSize(1))
	var mu sync.Mutex
	var failures []*events.CompositionFailedData
	bus.Subscribe(events.EventCompositionFailed, func(e *events.Event) {
		if data, ok := e.Data.(*events.CompositionFailedData); ok {
			mu.Lock()
			failures = append(failures, data)
			mu.Unlock()
		}
	})

	reg := NewRegistry(testRepo(t), WithEventBus(bus))

	_, err := reg.Compose(context.Background(), "tempflow")
	require.Error(t, err)
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Error, persistence.ErrVariantNotFound)
}

func TestRegistry_Compose_EmitsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reg := NewRegistry(testRepo(t), WithTracerProvider(tp))

	snap, err := reg.Compose(context.Background(), "deepar")
	require.NoError(t, err)
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	// The resolve pass ends before the enclosing compose span.
	resolveSpan := spans[0]
	composeSpan := spans[1]
	assert.Equal(t, "modelconf.resolve", resolveSpan.Name)
	assert.Equal(t, "modelconf.compose", composeSpan.Name)
	assert.Equal(t, composeSpan.SpanContext.SpanID(), resolveSpan.Parent.SpanID())
	assert.Equal(t, codes.Ok, composeSpan.Status.Code)

	attrs := make(map[string]attribute.Value)
	for _, kv := range composeSpan.Attributes {
		attrs[string(kv.Key)] = kv.Value
	}
	assert.Equal(t, "deepar", attrs["variant.name"].AsString())
	assert.Equal(t, snap.ID, attrs["snapshot.id"].AsString())
	assert.Equal(t, int64(2), attrs["compose.references"].AsInt64())

	resolveAttrs := make(map[string]attribute.Value)
	for _, kv := range resolveSpan.Attributes {
		resolveAttrs[string(kv.Key)] = kv.Value
	}
	assert.Equal(t, int64(2), resolveAttrs["resolve.references"].AsInt64())
}

func TestRegistry_Compose_SpanRecordsError(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reg := NewRegistry(testRepo(t), WithTracerProvider(tp))

	_, err := reg.Compose(context.Background(), "tempflow")
	require.Error(t, err)
	require.NoError(t, tp.ForceFlush(context.Background()))

	// The variant lookup fails before the resolve pass starts.
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "modelconf.compose", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Status.Description, "tempflow")
}
