package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/agentstation/pocketflow"
)

// ErrPanic wraps a panic recovered from a lifecycle phase.
var ErrPanic = errors.New("middleware: panic")

// Timeout bounds each exec attempt. The attempt's context is cancelled after
// duration and the attempt fails, which counts towards the node's retries.
func Timeout(duration time.Duration) Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		exec := steps.Exec
		steps.Exec = func(ctx context.Context, prepResult any) (any, error) {
			timeoutCtx, cancel := context.WithTimeout(ctx, duration)
			defer cancel()

			type outcome struct {
				result any
				err    error
			}
			done := make(chan outcome, 1)

			go func() {
				result, err := exec(timeoutCtx, prepResult)
				done <- outcome{result, err}
			}()

			select {
			case o := <-done:
				return o.result, o.err
			case <-timeoutCtx.Done():
				return nil, fmt.Errorf("exec timed out after %v: %w", duration, timeoutCtx.Err())
			}
		}
		return steps
	}
}

// Recover turns panics in any phase into errors wrapping ErrPanic. A panic
// in exec therefore becomes an ordinary failed attempt.
func Recover() Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		return pocketflow.Steps{
			Prep: func(ctx context.Context, shared *pocketflow.Shared) (result any, err error) {
				defer recoverInto(ctx, &err)
				return steps.Prep(ctx, shared)
			},
			Exec: func(ctx context.Context, prepResult any) (result any, err error) {
				defer recoverInto(ctx, &err)
				return steps.Exec(ctx, prepResult)
			},
			Fallback: func(ctx context.Context, prepResult any, execErr error) (result any, err error) {
				defer recoverInto(ctx, &err)
				return steps.Fallback(ctx, prepResult, execErr)
			},
			Post: func(ctx context.Context, shared *pocketflow.Shared, prepResult, execResult any) (action any, err error) {
				defer recoverInto(ctx, &err)
				return steps.Post(ctx, shared, prepResult, execResult)
			},
		}
	}
}

func recoverInto(ctx context.Context, err *error) {
	r := recover()
	if r == nil {
		return
	}
	pocketflow.LoggerFrom(ctx).Error(ctx, "recovered panic", "panic", r, "stack", string(debug.Stack()))
	*err = fmt.Errorf("%w: %v", ErrPanic, r)
}

// Validation checks the prep result before exec and the exec result before
// post. A failed input check fails prep; a failed output check fails post.
func Validation(validateInput, validateOutput func(any) error) Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		if validateInput != nil {
			prep := steps.Prep
			steps.Prep = func(ctx context.Context, shared *pocketflow.Shared) (any, error) {
				result, err := prep(ctx, shared)
				if err != nil {
					return nil, err
				}
				if err := validateInput(result); err != nil {
					return nil, fmt.Errorf("input validation failed: %w", err)
				}
				return result, nil
			}
		}

		if validateOutput != nil {
			post := steps.Post
			steps.Post = func(ctx context.Context, shared *pocketflow.Shared, prepResult, execResult any) (any, error) {
				if err := validateOutput(execResult); err != nil {
					return nil, fmt.Errorf("output validation failed: %w", err)
				}
				return post(ctx, shared, prepResult, execResult)
			}
		}

		return steps
	}
}

// Transform rewrites the prep result before exec and the exec result before
// post.
func Transform(transformInput, transformOutput func(any) any) Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		if transformInput != nil {
			prep := steps.Prep
			steps.Prep = func(ctx context.Context, shared *pocketflow.Shared) (any, error) {
				result, err := prep(ctx, shared)
				if err != nil {
					return nil, err
				}
				return transformInput(result), nil
			}
		}

		if transformOutput != nil {
			post := steps.Post
			steps.Post = func(ctx context.Context, shared *pocketflow.Shared, prepResult, execResult any) (any, error) {
				return post(ctx, shared, prepResult, transformOutput(execResult))
			}
		}

		return steps
	}
}

// ErrorHandler passes exec errors through handler. Returning nil from handler
// swallows the error and the attempt succeeds with a nil result.
func ErrorHandler(handler func(error) error) Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		exec := steps.Exec
		steps.Exec = func(ctx context.Context, prepResult any) (any, error) {
			result, err := exec(ctx, prepResult)
			if err != nil {
				if handledErr := handler(err); handledErr != nil {
					return nil, handledErr
				}
				return result, nil
			}
			return result, nil
		}
		return steps
	}
}
