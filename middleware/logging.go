package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/pocketflow"
)

// Logging adds structured logging around each phase of the node called
// name. A nil logger uses the one carried by the context.
func Logging(logger pocketflow.Logger, name string) Middleware {
	from := func(ctx context.Context) pocketflow.Logger {
		if logger != nil {
			return logger
		}
		return pocketflow.LoggerFrom(ctx)
	}

	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		return pocketflow.Steps{
			Prep: func(ctx context.Context, shared *pocketflow.Shared) (any, error) {
				log := from(ctx)
				log.Debug(ctx, "node prep starting", "node", name)
				start := time.Now()

				result, err := steps.Prep(ctx, shared)

				log.Debug(ctx, "node prep completed",
					"node", name,
					"duration", time.Since(start),
					"error", err)

				return result, err
			},
			Exec: func(ctx context.Context, prepResult any) (any, error) {
				log := from(ctx)
				log.Info(ctx, "node exec starting", "node", name)
				start := time.Now()

				result, err := steps.Exec(ctx, prepResult)

				if err != nil {
					log.Error(ctx, "node exec failed",
						"node", name,
						"duration", time.Since(start),
						"error", err)
				} else {
					log.Info(ctx, "node exec completed",
						"node", name,
						"duration", time.Since(start),
						"result_type", fmt.Sprintf("%T", result))
				}

				return result, err
			},
			Fallback: func(ctx context.Context, prepResult any, execErr error) (any, error) {
				from(ctx).Info(ctx, "node fallback", "node", name, "error", execErr)
				return steps.Fallback(ctx, prepResult, execErr)
			},
			Post: func(ctx context.Context, shared *pocketflow.Shared, prepResult, execResult any) (any, error) {
				log := from(ctx)
				log.Debug(ctx, "node post starting", "node", name)

				action, err := steps.Post(ctx, shared, prepResult, execResult)

				log.Debug(ctx, "node post completed",
					"node", name,
					"action", pocketflow.ToAction(action),
					"error", err)

				return action, err
			},
		}
	}
}
