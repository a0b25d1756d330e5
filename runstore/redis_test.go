package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStore creates a test Redis store backed by miniredis.
func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, opts...)
	return store, mr
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store, _ := setupRedisStore(t)
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

func TestRedisStore_LoadNotFound(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Load(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_LoadInvalidID(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRedisStore_SaveInvalid(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	err := store.Save(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	snap := testSnapshot(t, "deepar")
	snap.ID = ""
	err = store.Save(ctx, snap)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRedisStore_SaveReplacesExisting(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")
	require.NoError(t, store.Save(ctx, snap))

	snap.ToolVersion = "2.0.0"
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", loaded.ToolVersion)

	ids, err := store.List(ctx, ListOptions{Variant: "deepar"})
	require.NoError(t, err)
	assert.Equal(t, []string{snap.ID}, ids)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")
	require.NoError(t, store.Save(ctx, snap))

	err := store.Delete(ctx, snap.ID)
	require.NoError(t, err)

	_, err = store.Load(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The variant index set no longer mentions the ID.
	ids, err := store.List(ctx, ListOptions{Variant: "deepar"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_DeleteNotFound(t *testing.T) {
	store, _ := setupRedisStore(t)

	err := store.Delete(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_List(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	first := testSnapshot(t, "deepar")
	second := testSnapshot(t, "timegrad")
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	ids, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	ids, err = store.List(ctx, ListOptions{Variant: "timegrad"})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)

	page, err := store.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestRedisStore_TTLExpiresSnapshots(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")
	require.NoError(t, store.Save(ctx, snap))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_PrefixIsolatesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	custom := NewRedisStore(client, WithPrefix("experiments"))
	plain := NewRedisStore(client)

	snap := testSnapshot(t, "deepar")
	require.NoError(t, custom.Save(ctx, snap))

	ids, err := custom.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	ids, err = plain.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Backend(t *testing.T) {
	store, _ := setupRedisStore(t)
	assert.Equal(t, "redis", store.Backend())
}
