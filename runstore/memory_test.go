package runstore

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temporalab/modelconf/document"
	"github.com/temporalab/modelconf/snapshot"
)

// testSnapshot builds a resolved snapshot for the given variant.
func testSnapshot(t *testing.T, variant string) *snapshot.Snapshot {
	t.Helper()
	doc, err := document.Parse([]byte(fmt.Sprintf(`
name: %s
compute_flops: false
params:
  epochs: 30
  context_length: 24
`, variant)), "test.yaml")
	require.NoError(t, err)

	snap, err := snapshot.New(doc, variant, "1.0.0")
	require.NoError(t, err)
	return snap
}

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")

	err := store.Save(ctx, snap)
	require.NoError(t, err)

	loaded, err := store.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, loaded.ID)
	assert.Equal(t, "deepar", loaded.Variant)
	assert.Equal(t, snap.Digest, loaded.Digest)
	assert.NoError(t, loaded.Verify())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")
	require.NoError(t, store.Save(ctx, snap))

	// Mutating the caller's snapshot must not reach the archive.
	snap.Resolved["params"].(map[string]any)["epochs"] = 999

	loaded, err := store.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 30, loaded.Resolved["params"].(map[string]any)["epochs"])

	// Neither must mutating a loaded copy.
	loaded.Resolved["params"].(map[string]any)["epochs"] = 777

	again, err := store.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 30, again.Resolved["params"].(map[string]any)["epochs"])
}

func TestMemoryStore_LoadNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_LoadInvalidID(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryStore_SaveInvalid(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Save(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	snap := testSnapshot(t, "deepar")
	snap.ID = ""
	err = store.Save(ctx, snap)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")
	require.NoError(t, store.Save(ctx, snap))

	err := store.Delete(ctx, snap.ID)
	require.NoError(t, err)

	_, err = store.Load(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The variant index is cleaned up too.
	ids, err := store.List(ctx, ListOptions{Variant: "deepar"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_DeleteNotFound(t *testing.T) {
	store := NewMemoryStore()

	err := store.Delete(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := testSnapshot(t, "deepar")
	second := testSnapshot(t, "deepar")
	third := testSnapshot(t, "timegrad")
	for _, snap := range []*snapshot.Snapshot{first, second, third} {
		require.NoError(t, store.Save(ctx, snap))
	}

	t.Run("all snapshots", func(t *testing.T) {
		ids, err := store.List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.Len(t, ids, 3)
		assert.True(t, sort.StringsAreSorted(ids))
	})

	t.Run("filtered by variant", func(t *testing.T) {
		ids, err := store.List(ctx, ListOptions{Variant: "deepar"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	})

	t.Run("unknown variant", func(t *testing.T) {
		ids, err := store.List(ctx, ListOptions{Variant: "tempflow"})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := store.List(ctx, ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page, 2)

		rest, err := store.List(ctx, ListOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, rest, 1)

		beyond, err := store.List(ctx, ListOptions{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, beyond)
	})
}

func TestMemoryStore_Backend(t *testing.T) {
	assert.Equal(t, "memory", NewMemoryStore().Backend())
}
