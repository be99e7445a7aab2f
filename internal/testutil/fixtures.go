// Package testutil provides fixtures shared by pocketflow tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/pocketflow"
)

// ErrFlaky is returned by Flaky until it is allowed to succeed.
var ErrFlaky = errors.New("flaky failure")

// Recorder records node visits in order. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	visits []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends name.
func (r *Recorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, name)
}

// Visits returns a copy of the recorded names.
func (r *Recorder) Visits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.visits...)
}

// Count returns how many times name was recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.visits {
		if v == name {
			n++
		}
	}
	return n
}

// Flaky is an exec that fails a fixed number of times before succeeding.
type Flaky struct {
	failures int64
	calls    atomic.Int64
	result   any
}

// NewFlaky returns an exec that fails failures times, then returns result.
// A negative failures count never succeeds.
func NewFlaky(failures int, result any) *Flaky {
	return &Flaky{failures: int64(failures), result: result}
}

// Exec implements pocketflow.ExecFunc.
func (f *Flaky) Exec(context.Context, any) (any, error) {
	n := f.calls.Add(1)
	if f.failures < 0 || n <= f.failures {
		return nil, ErrFlaky
	}
	return f.result, nil
}

// Calls returns the number of Exec calls.
func (f *Flaky) Calls() int {
	return int(f.calls.Load())
}

// Visit returns a node that records its name and routes with action.
func Visit(rec *Recorder, name string, action any) pocketflow.Node {
	return pocketflow.NewNode(name, pocketflow.Steps{
		Post: func(context.Context, *pocketflow.Shared, any, any) (any, error) {
			rec.Record(name)
			return action, nil
		},
	})
}

// Sleepy returns an exec that sleeps for delay(input) before echoing input.
func Sleepy(delay func(input any) time.Duration) pocketflow.ExecFunc {
	return func(ctx context.Context, input any) (any, error) {
		select {
		case <-time.After(delay(input)):
			return input, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Countdown returns a node that decrements the integer at key and routes
// with loop while it stays positive, then with done.
func Countdown(rec *Recorder, name, key, loop, done string) pocketflow.Node {
	return pocketflow.NewNode(name, pocketflow.Steps{
		Post: func(_ context.Context, shared *pocketflow.Shared, _, _ any) (any, error) {
			rec.Record(name)
			var left int
			shared.Update(key, func(v any, _ bool) any {
				n, _ := v.(int)
				left = n - 1
				return left
			})
			if left > 0 {
				return loop, nil
			}
			return done, nil
		},
	})
}
