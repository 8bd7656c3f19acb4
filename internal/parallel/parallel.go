// Package parallel runs independent per-table work with bounded concurrency.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Limit returns workers, or the number of CPUs when workers is not positive.
func Limit(workers int) int {
	if workers > 0 {
		return workers
	}
	return runtime.NumCPU()
}

// ForEach calls fn for every item with at most limit calls in flight. The
// first error cancels the context passed to the remaining calls and is
// returned once all started calls have finished.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, i int, item T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Limit(limit))
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, item)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Map is ForEach collecting one result per item, in input order.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	err := ForEach(ctx, limit, items, func(ctx context.Context, i int, item T) error {
		r, err := fn(ctx, item)
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
