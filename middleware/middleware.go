// Package middleware wraps node lifecycles with cross-cutting behavior such
// as logging, timeouts, panic recovery and validation.
package middleware

import (
	"github.com/agentstation/pocketflow"
)

// Middleware modifies a node's lifecycle. Unset phases take their defaults,
// so a middleware can be applied to partial Steps directly.
type Middleware func(pocketflow.Steps) pocketflow.Steps

// Chain combines multiple middlewares into a single middleware.
// Middlewares are applied in reverse order (like function composition), so
// the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		for i := len(middlewares) - 1; i >= 0; i-- {
			steps = middlewares[i](steps).WithDefaults()
		}
		return steps
	}
}

// Apply applies middleware to steps in order, so the last one is the
// outermost.
func Apply(steps pocketflow.Steps, middlewares ...Middleware) pocketflow.Steps {
	steps = steps.WithDefaults()
	for _, mw := range middlewares {
		steps = mw(steps).WithDefaults()
	}
	return steps
}
