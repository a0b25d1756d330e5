package runstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/temporalab/modelconf/snapshot"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore provides an in-memory implementation of the Store interface.
// It is thread-safe and suitable for development, testing, and single-process
// runs. For shared or durable storage, use RedisStore or S3Store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*snapshot.Snapshot

	// Index for efficient variant-based lookups
	variantIndex map[string][]string // variant -> []snapshotID
}

// NewMemoryStore creates a new in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:    make(map[string]*snapshot.Snapshot),
		variantIndex: make(map[string][]string),
	}
}

// Backend names the storage backend.
func (s *MemoryStore) Backend() string {
	return "memory"
}

// Save persists a snapshot. Stores a deep copy so later mutations by the
// caller don't leak into the archive.
func (s *MemoryStore) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return ErrInvalidSnapshot
	}
	if snap.ID == "" {
		return ErrInvalidID
	}

	copied, err := copySnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to copy snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.ID] = copied
	if snap.Variant != "" {
		s.updateVariantIndex(snap.Variant, snap.ID)
	}

	return nil
}

// Load retrieves a snapshot by ID. Returns a deep copy to prevent external
// mutations.
func (s *MemoryStore) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.snapshots[id]
	if !exists {
		return nil, ErrNotFound
	}

	copied, err := copySnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to copy snapshot: %w", err)
	}
	return copied, nil
}

// Delete removes a snapshot by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, exists := s.snapshots[id]
	if !exists {
		return ErrNotFound
	}

	if snap.Variant != "" {
		s.removeFromVariantIndex(snap.Variant, id)
	}
	delete(s.snapshots, id)

	return nil
}

// List returns snapshot IDs matching the given criteria, lexically sorted.
func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	if opts.Variant != "" {
		indexed, exists := s.variantIndex[opts.Variant]
		if !exists {
			return []string{}, nil
		}
		ids = make([]string, len(indexed))
		copy(ids, indexed)
	} else {
		ids = make([]string, 0, len(s.snapshots))
		for id := range s.snapshots {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)
	return applyPagination(ids, opts.Offset, opts.Limit), nil
}

// updateVariantIndex adds a snapshot ID to the variant's index.
// Must be called with mutex locked.
func (s *MemoryStore) updateVariantIndex(variant, id string) {
	indexed, exists := s.variantIndex[variant]
	if !exists {
		s.variantIndex[variant] = []string{id}
		return
	}

	for _, existing := range indexed {
		if existing == id {
			return
		}
	}

	s.variantIndex[variant] = append(indexed, id)
}

// removeFromVariantIndex removes a snapshot ID from the variant's index.
// Must be called with mutex locked.
func (s *MemoryStore) removeFromVariantIndex(variant, id string) {
	indexed, exists := s.variantIndex[variant]
	if !exists {
		return
	}

	filtered := make([]string, 0, len(indexed))
	for _, existing := range indexed {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}

	if len(filtered) == 0 {
		delete(s.variantIndex, variant)
	} else {
		s.variantIndex[variant] = filtered
	}
}
