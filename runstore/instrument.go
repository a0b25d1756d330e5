package runstore

import (
	"context"
	"errors"
	"time"

	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/logger"
	"github.com/temporalab/modelconf/snapshot"
)

// Compile-time interface check
var _ Store = (*instrumentedStore)(nil)

// instrumentedStore decorates a Store with event publication and logging.
type instrumentedStore struct {
	inner Store
	bus   *events.EventBus
}

// Instrumented wraps a store so successful operations publish snapshot
// lifecycle events to the bus and backend failures are logged. A nil bus
// keeps the logging and drops the events.
func Instrumented(store Store, bus *events.EventBus) Store {
	return &instrumentedStore{inner: store, bus: bus}
}

func (s *instrumentedStore) Backend() string {
	return s.inner.Backend()
}

func (s *instrumentedStore) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	start := time.Now()
	if err := s.inner.Save(ctx, snap); err != nil {
		s.logError("save", err)
		return err
	}

	logger.SnapshotStored(s.Backend(), snap.Variant, snap.ID)
	events.NewEmitter(s.bus, snap.Variant, "").SnapshotSaved(s.Backend(), snap.ID, time.Since(start))
	return nil
}

func (s *instrumentedStore) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	start := time.Now()
	snap, err := s.inner.Load(ctx, id)
	if err != nil {
		s.logError("load", err)
		return nil, err
	}

	events.NewEmitter(s.bus, snap.Variant, "").SnapshotLoaded(s.Backend(), id, time.Since(start))
	return snap, nil
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	if err := s.inner.Delete(ctx, id); err != nil {
		s.logError("delete", err)
		return err
	}

	events.NewEmitter(s.bus, "", "").SnapshotDeleted(s.Backend(), id, time.Since(start))
	return nil
}

func (s *instrumentedStore) List(ctx context.Context, opts ListOptions) ([]string, error) {
	ids, err := s.inner.List(ctx, opts)
	if err != nil {
		s.logError("list", err)
		return nil, err
	}
	return ids, nil
}

// logError logs backend failures. Missing snapshots and empty IDs are caller
// conditions, not backend trouble.
func (s *instrumentedStore) logError(op string, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID) || errors.Is(err, ErrInvalidSnapshot) {
		return
	}
	logger.StoreError(s.Backend(), op, err)
}
