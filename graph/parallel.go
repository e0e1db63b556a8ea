package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MapParallel calls fn once per item, concurrently, and waits for every call
// to return before it returns (fan-out/fan-in). Results are stored by input
// index, so the output order always matches items.
//
// limit bounds the number of calls in flight; limit <= 0 means unbounded.
// A failing call does not cancel its siblings. If any call fails, one of the
// errors is returned after all calls have finished and the results are
// discarded. A panic inside fn is converted to an error.
func MapParallel[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic in parallel task %d: %v", i, p)
				}
			}()

			res, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MapSequential is the one-at-a-time counterpart of MapParallel. It stops at
// the first error.
func MapSequential[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	for i, item := range items {
		res, err := fn(ctx, item)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}
