// Package taskexec implements the shared task executor (spec §5):
// "the controller, expander, and API adapters run on a shared task
// executor with configurable parallelism." Grounded on the teacher's
// internal/proxy stream-limiter (a semaphore.Weighted bounding concurrent
// work) and internal/daemon/app.go's errgroup.WithContext orchestration of
// independent background subsystems.
package taskexec

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Executor runs flow-lifecycle work (the Flow Table's start/stop/pause
// calls) with an upper bound on how many tasks may run concurrently, so a
// burst of such calls across many flows can't starve the process of OS
// threads. Live property mutations do not go through it.
type Executor struct {
	sem *semaphore.Weighted
}

// New constructs an Executor allowing up to parallelism concurrent tasks.
// parallelism <= 0 is treated as 1.
func New(parallelism int64) *Executor {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Executor{sem: semaphore.NewWeighted(parallelism)}
}

// Run blocks until a slot is free (or ctx is done) and then executes fn,
// releasing the slot on return.
func (e *Executor) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return fn(ctx)
}

// TryRun attempts to run fn without blocking, returning ok=false if no
// slot is immediately free, for call paths that must fail fast rather
// than queue. Nothing in this module calls it; the Flow Table uses Run.
func (e *Executor) TryRun(ctx context.Context, fn func(context.Context) error) (ok bool, err error) {
	if !e.sem.TryAcquire(1) {
		return false, nil
	}
	defer e.sem.Release(1)
	return true, fn(ctx)
}

// RunAll runs every fn through the bounded pool concurrently and waits for
// all of them, returning the first error encountered (spec §5's shared
// task executor serving independent controller/expander/API-adapter
// work). The group's context is cancelled on first error, so sibling
// tasks that respect ctx can stop early.
func (e *Executor) RunAll(ctx context.Context, fns ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			return e.Run(gctx, fn)
		})
	}
	return g.Wait()
}
