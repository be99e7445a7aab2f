package pocketflow

import (
	"context"
)

// Run drives n through its full lifecycle and returns its action. For a
// flow that is the whole traversal. n's successors are not followed; wrap n
// in a Flow for that.
//
// Run returns ErrAsyncOnly when n is async. A nil shared starts from an
// empty state.
func Run(ctx context.Context, n Node, shared *Shared) (any, error) {
	if n == nil {
		return nil, ErrNilNode
	}
	ctx, shared = prepareRun(ctx, n, shared)
	return n.RunLifecycle(ctx, shared)
}

// RunAsync starts n on its own goroutine and returns a Task for the result.
// The task completes immediately with ErrSyncOnly when n is not async.
func RunAsync(ctx context.Context, n Node, shared *Shared) *Task {
	t := newTask()
	if n == nil {
		t.finish(nil, ErrNilNode)
		return t
	}
	if !n.Async() {
		t.finish(nil, usageError(ErrSyncOnly, n.Name()))
		return t
	}

	ctx, shared = prepareRun(ctx, n, shared)
	go func() {
		t.finish(n.RunLifecycleAsync(ctx, shared))
	}()
	return t
}

func prepareRun(ctx context.Context, n Node, shared *Shared) (context.Context, *Shared) {
	if shared == nil {
		shared = NewShared(nil)
	}
	if len(n.Successors()) > 0 {
		LoggerFrom(ctx).Info(ctx, "node has successors that will not run; use a Flow", "node", n.Name())
	}
	return withParams(ctx, n.Params()), shared
}

// Task is the handle of a run started by RunAsync.
type Task struct {
	done   chan struct{}
	result any
	err    error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) finish(result any, err error) {
	t.result, t.err = result, err
	close(t.done)
}

// Done is closed when the run completes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run completes and returns its action and error.
func (t *Task) Wait() (any, error) {
	<-t.done
	return t.result, t.err
}

// Await is Wait bounded by ctx. Giving up on the task does not stop it.
func (t *Task) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.result, t.err
	}
}

// WaitAll waits for every task and returns their results in order along with
// the first error among them.
func WaitAll(tasks ...*Task) ([]any, error) {
	results := make([]any, len(tasks))
	var firstErr error
	for i, t := range tasks {
		result, err := t.Wait()
		results[i] = result
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}
