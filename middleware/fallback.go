package middleware

import (
	"context"
	"errors"

	"github.com/agentstation/pocketflow"
)

// FallbackChain replaces a node's fallback with handlers tried in order.
// The first handler to succeed supplies the result. Each handler receives
// the error of the one before it, and when all fail the errors are joined.
func FallbackChain(handlers ...pocketflow.FallbackFunc) Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		steps.Fallback = func(ctx context.Context, prepResult any, execErr error) (any, error) {
			errs := []error{execErr}
			lastErr := execErr
			for i, handler := range handlers {
				result, err := handler(ctx, prepResult, lastErr)
				if err == nil {
					pocketflow.LoggerFrom(ctx).Debug(ctx, "fallback chain recovered", "link", i)
					return result, nil
				}
				errs = append(errs, err)
				lastErr = err
			}
			return nil, errors.Join(errs...)
		}
		return steps
	}
}
