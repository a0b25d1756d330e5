package runstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/temporalab/modelconf/snapshot"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps snapshots in Redis: the JSON body under
// <prefix>:snapshot:<id> and a per-variant set of ids under
// <prefix>:variant:<name> so filtered listings never scan the
// keyspace. Suitable for sweeps spread across machines that share a
// coordinator.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires stored snapshots (and their variant index) after
// ttl. Zero, the default, keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithPrefix changes the key namespace from the default "modelconf".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore wraps an existing client:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(72 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{client: client, prefix: "modelconf"}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Backend names the storage backend.
func (s *RedisStore) Backend() string { return "redis" }

func (s *RedisStore) snapshotKey(id string) string {
	return s.prefix + ":snapshot:" + id
}

func (s *RedisStore) variantKey(variant string) string {
	return s.prefix + ":variant:" + variant
}

// Save writes the snapshot body and its variant index entry in one
// pipelined round-trip.
func (s *RedisStore) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return ErrInvalidSnapshot
	}
	if snap.ID == "" {
		return ErrInvalidID
	}

	body, err := snap.EncodeJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.snapshotKey(snap.ID), body, s.ttl)
	if snap.Variant != "" {
		index := s.variantKey(snap.Variant)
		pipe.SAdd(ctx, index, snap.ID)
		if s.ttl > 0 {
			pipe.Expire(ctx, index, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by id.
func (s *RedisStore) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	body, err := s.client.Get(ctx, s.snapshotKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	snap, err := snapshot.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes a snapshot and its variant index entry. The snapshot
// is loaded first to learn which index to clean up.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	snap, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, s.snapshotKey(id))
	if snap.Variant != "" {
		pipe.SRem(ctx, s.variantKey(snap.Variant), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	// deleted between the Load above and the pipeline
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns snapshot ids, lexically sorted and paginated. With a
// variant filter the per-variant index answers directly; without one
// the snapshot keyspace is SCANned.
func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]string, error) {
	var (
		ids []string
		err error
	)
	if opts.Variant != "" {
		ids, err = s.client.SMembers(ctx, s.variantKey(opts.Variant)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis smembers failed: %w", err)
		}
	} else if ids, err = s.scanIDs(ctx); err != nil {
		return nil, err
	}

	sort.Strings(ids)
	return applyPagination(ids, opts.Offset, opts.Limit), nil
}

func (s *RedisStore) scanIDs(ctx context.Context) ([]string, error) {
	keyPrefix := s.snapshotKey("")
	var ids []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if key := iter.Val(); strings.HasPrefix(key, keyPrefix) {
			ids = append(ids, key[len(keyPrefix):])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return ids, nil
}
