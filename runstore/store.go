// Package runstore provides snapshot persistence across backends.
//
// A run store archives composed snapshots by ID so that past experiment
// configurations can be reloaded, compared, and audited. Three backends are
// provided: in-memory for tests and single-process use, Redis for shared
// short-lived state, and S3 for durable archives. All backends index
// snapshots by variant name for filtered listings.
package runstore

import (
	"context"
	"errors"

	"github.com/temporalab/modelconf/snapshot"
)

// Store defines the interface for persistent snapshot storage.
type Store interface {
	// Backend names the storage backend ("memory", "redis", "s3").
	Backend() string

	// Save persists a snapshot. Saving an existing ID replaces it.
	Save(ctx context.Context, snap *snapshot.Snapshot) error

	// Load retrieves a snapshot by ID.
	Load(ctx context.Context, id string) (*snapshot.Snapshot, error)

	// Delete removes a snapshot by ID. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns snapshot IDs in lexical order, subject to opts.
	List(ctx context.Context, opts ListOptions) ([]string, error)
}

// ListOptions provides filtering and pagination options for listing snapshots.
type ListOptions struct {
	// Variant filters snapshots by the variant they were composed from.
	// If empty, all snapshots are returned (subject to pagination).
	Variant string

	// Limit is the maximum number of snapshot IDs to return.
	// If 0, a default limit of 100 is applied.
	Limit int

	// Offset is the number of snapshots to skip (for pagination).
	Offset int
}

// defaultListLimit applies when ListOptions.Limit is zero.
const defaultListLimit = 100

// ErrNotFound is returned when a snapshot doesn't exist in the store.
var ErrNotFound = errors.New("snapshot not found")

// ErrInvalidID is returned when an empty snapshot ID is provided.
var ErrInvalidID = errors.New("invalid snapshot ID")

// ErrInvalidSnapshot is returned when a nil snapshot is saved.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// applyPagination applies offset and limit to a sorted ID list.
func applyPagination(ids []string, offset, limit int) []string {
	if limit == 0 {
		limit = defaultListLimit
	}

	if offset >= len(ids) {
		return []string{}
	}

	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	return ids[offset:end]
}

// copySnapshot deep-copies a snapshot through its JSON encoding.
func copySnapshot(snap *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	data, err := snap.EncodeJSON()
	if err != nil {
		return nil, err
	}
	return snapshot.DecodeJSON(data)
}
