package result

import (
	"context"

	"github.com/daryltucker/mapreplay/internal/rundir"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds Collect when no worker count is given.
const DefaultWorkers = 32

// Task is a deferred evaluation.
type Task func(ctx context.Context) (*MacroOutputStats, error)

// CollectOptions tunes Collect.
type CollectOptions struct {
	// Workers is the pool size; <= 0 means DefaultWorkers.
	Workers int
	// Progress, if set, is called from the consuming goroutine after each result.
	Progress func(done, total int)
}

// Collect runs tasks on a bounded pool and returns their results as a List in
// completion order, not submission order.
func Collect(ctx context.Context, tasks []Task, opts CollectOptions) (List, error) {
	fns := make([]func(context.Context) (*MacroOutputStats, error), len(tasks))
	for i, t := range tasks {
		fns[i] = t
	}
	out, err := CollectEach(ctx, fns, opts)
	if err != nil {
		return nil, err
	}
	return List(out), nil
}

// CollectEach runs tasks on at most opts.Workers goroutines and gathers their
// values in completion order. Each worker's context carries a worker id taken from
// rundir.NextWorker, so tasks running at the same time get distinct run
// directories even across pools running side by side. The first failing
// task cancels the rest and its error is returned.
func CollectEach[T any](ctx context.Context, tasks []func(context.Context) (T, error), opts CollectOptions) ([]T, error) {
	total := len(tasks)
	if total == 0 {
		return []T{}, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > total {
		workers = total
	}

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan func(context.Context) (T, error))
	done := make(chan T, workers)

	g.Go(func() error {
		defer close(queue)
		for _, t := range tasks {
			select {
			case queue <- t:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		wctx := rundir.WithNewWorker(gctx)
		g.Go(func() error {
			for t := range queue {
				v, err := t(wctx)
				if err != nil {
					return err
				}
				select {
				case done <- v:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var waitErr error
	finished := make(chan struct{})
	go func() {
		waitErr = g.Wait()
		close(done)
		close(finished)
	}()

	out := make([]T, 0, total)
	for v := range done {
		out = append(out, v)
		if opts.Progress != nil {
			opts.Progress(len(out), total)
		}
	}
	<-finished
	if waitErr != nil {
		return nil, waitErr
	}
	return out, nil
}
