package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/temporalab/modelconf/compose"
	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/logger"
	"github.com/temporalab/modelconf/runstore"
	"github.com/temporalab/modelconf/snapshot"
)

const defaultWorkers = 4

// Composer resolves one variant with ad-hoc overrides into a snapshot.
// *variant.Registry satisfies this.
type Composer interface {
	Compose(ctx context.Context, name string, overrides ...compose.Override) (*snapshot.Snapshot, error)
}

// Exporter writes a snapshot to a run directory. *snapshot.Writer satisfies
// this.
type Exporter interface {
	Write(snap *snapshot.Snapshot) (string, error)
}

// Result is the outcome of one grid combination. Exactly one of Snapshot and
// Err is set.
type Result struct {
	Index     int
	Overrides []compose.Override
	Snapshot  *snapshot.Snapshot
	RunDir    string
	Err       error
}

// Summary aggregates a finished sweep. Results keep the combination order of
// the grid.
type Summary struct {
	SweepID   string
	Variant   string
	Results   []Result
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// FirstError returns the error of the earliest failed combination, or nil
// when every combination succeeded.
func (s *Summary) FirstError() error {
	for _, res := range s.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// Runner resolves every grid combination through a bounded worker pool.
type Runner struct {
	composer Composer
	store    runstore.Store
	exporter Exporter
	bus      *events.EventBus
	workers  int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the concurrency bound. Values below one are ignored.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithStore archives every successful snapshot in the given store.
func WithStore(store runstore.Store) RunnerOption {
	return func(r *Runner) {
		r.store = store
	}
}

// WithExporter writes every successful snapshot to a run directory.
func WithExporter(exporter Exporter) RunnerOption {
	return func(r *Runner) {
		r.exporter = exporter
	}
}

// WithEventBus publishes sweep lifecycle events to the given bus.
func WithEventBus(bus *events.EventBus) RunnerOption {
	return func(r *Runner) {
		r.bus = bus
	}
}

// NewRunner creates a sweep runner around a composer.
func NewRunner(composer Composer, opts ...RunnerOption) *Runner {
	r := &Runner{
		composer: composer,
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run expands the grid and resolves every combination. Combinations execute
// concurrently up to the worker bound, and the first failure cancels the
// combinations not yet started. Per-combination outcomes land in the summary
// in grid order; Run itself fails only when the sweep cannot start.
func (r *Runner) Run(ctx context.Context, variantName string, grid Grid) (*Summary, error) {
	if r.composer == nil {
		return nil, fmt.Errorf("sweep requires a composer")
	}

	combos := grid.Combinations()
	if len(combos) == 0 {
		return nil, fmt.Errorf("sweep grid has an axis with no values")
	}

	sweepID := uuid.NewString()
	start := time.Now()

	emitter := events.NewEmitter(r.bus, variantName, sweepID)
	emitter.SweepStarted(len(combos), r.workers)
	logger.SweepRun(variantName, len(combos), r.workers, "sweep_id", sweepID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(combos))
	sem := semaphore.NewWeighted(int64(r.workers))
	var wg sync.WaitGroup

	for i, overrides := range combos {
		if err := sem.Acquire(runCtx, 1); err != nil {
			results[i] = Result{Index: i, Overrides: overrides, Err: err}
			continue
		}

		wg.Add(1)
		go func(index int, overrides []compose.Override) {
			defer wg.Done()
			defer sem.Release(1)

			res := r.runOne(runCtx, emitter, variantName, index, overrides)
			results[index] = res
			if res.Err != nil {
				cancel()
			}
		}(i, overrides)
	}
	wg.Wait()

	summary := &Summary{
		SweepID:  sweepID,
		Variant:  variantName,
		Results:  results,
		Duration: time.Since(start),
	}
	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	emitter.SweepCompleted(summary.Succeeded, summary.Failed, summary.Duration)
	return summary, nil
}

// runOne composes a single combination and applies the optional store and
// export steps.
func (r *Runner) runOne(ctx context.Context, emitter *events.Emitter, variantName string, index int, overrides []compose.Override) Result {
	start := time.Now()
	res := Result{Index: index, Overrides: overrides}

	snap, err := r.composer.Compose(ctx, variantName, overrides...)
	if err == nil && r.store != nil {
		if storeErr := r.store.Save(ctx, snap); storeErr != nil {
			err = fmt.Errorf("failed to store snapshot: %w", storeErr)
		}
	}
	if err == nil && r.exporter != nil {
		runDir, exportErr := r.exporter.Write(snap)
		if exportErr != nil {
			err = fmt.Errorf("failed to export run directory: %w", exportErr)
		} else {
			res.RunDir = runDir
		}
	}

	if err != nil {
		res.Err = err
		emitter.SweepRunCompleted(index, "", err, time.Since(start))
		return res
	}

	res.Snapshot = snap
	emitter.SweepRunCompleted(index, snap.ID, nil, time.Since(start))
	return res
}
