// Package batch runs a single-item executor over a sequence of items, one at
// a time or all at once, keeping results in input order.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Mode selects how items are scheduled.
type Mode int

const (
	// None means the executor is not batched.
	None Mode = iota
	// Sequential runs each item to completion before starting the next.
	Sequential
	// Parallel launches every item at once and joins them.
	Parallel
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Executor processes a single item.
type Executor[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Run applies exec to every item and returns the results in input order.
//
// Sequential mode stops at the first error. Parallel mode never cancels
// running siblings: it waits for every item and then returns the first
// error observed.
func Run[T, R any](ctx context.Context, mode Mode, items []T, exec Executor[T, R]) ([]R, error) {
	if mode == Parallel {
		return runParallel(ctx, items, exec)
	}
	return runSequential(ctx, items, exec)
}

func runSequential[T, R any](ctx context.Context, items []T, exec Executor[T, R]) ([]R, error) {
	results := make([]R, len(items))

	for i, item := range items {
		result, err := exec(ctx, i, item)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}

	return results, nil
}

func runParallel[T, R any](ctx context.Context, items []T, exec Executor[T, R]) ([]R, error) {
	var g errgroup.Group
	results := make([]R, len(items))

	for i, item := range items {
		g.Go(func() error {
			result, err := exec(ctx, i, item)
			if err != nil {
				return err
			}
			// Each goroutine owns results[i].
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
