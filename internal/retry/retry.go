// Package retry implements the attempt loop and exponential backoff wrapped
// around a node's exec phase.
package retry

import (
	"context"
	"math"
	"time"
)

// Policy defines retry behavior for one exec invocation.
type Policy struct {
	// MaxAttempts is the total number of attempts (1 = no retry).
	MaxAttempts int
	// BaseWait is the wait after the first failed attempt. It doubles after
	// every further failure. Zero disables waiting.
	BaseWait time.Duration
}

// New returns a normalized policy.
func New(maxAttempts int, baseWait time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, BaseWait: baseWait}.Normalize()
}

// Normalize clamps MaxAttempts to at least 1 and BaseWait to at least 0.
func (p Policy) Normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseWait < 0 {
		p.BaseWait = 0
	}
	return p
}

// Backoff returns the wait that follows failed attempt number attempt
// (1-based): BaseWait * 2^(attempt-1), saturating at the largest Duration.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseWait <= 0 || attempt < 1 {
		return 0
	}
	shift := attempt - 1
	if shift >= 63 || p.BaseWait > time.Duration(math.MaxInt64)>>shift {
		return time.Duration(math.MaxInt64)
	}
	return p.BaseWait << shift
}

// Sleeper waits between attempts.
type Sleeper func(ctx context.Context, d time.Duration) error

// Block waits for d without observing ctx.
func Block(_ context.Context, d time.Duration) error {
	time.Sleep(d)
	return nil
}

// Suspend waits for d or until ctx is done, whichever comes first.
func Suspend(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Hooks observe the attempt loop.
type Hooks struct {
	// OnRetry runs after a failed attempt that will be retried.
	OnRetry func(attempt int, wait time.Duration, err error)
	// OnExhausted runs once after the last failed attempt, before fallback.
	OnExhausted func(attempts int, err error)
}

// Do runs fn until it succeeds or p.MaxAttempts attempts have failed, then
// hands the last error to fallback, whose result is returned as is. It
// returns the number of attempts made. An error from sleep aborts the loop
// and is returned without calling fallback.
func (p Policy) Do(
	ctx context.Context,
	sleep Sleeper,
	fn func() (any, error),
	fallback func(err error) (any, error),
	hooks Hooks,
) (any, int, error) {
	p = p.Normalize()

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, attempt, nil
		}

		if attempt >= p.MaxAttempts {
			if hooks.OnExhausted != nil {
				hooks.OnExhausted(attempt, err)
			}
			result, err = fallback(err)
			return result, attempt, err
		}

		wait := p.Backoff(attempt)
		if hooks.OnRetry != nil {
			hooks.OnRetry(attempt, wait, err)
		}
		if wait > 0 {
			if serr := sleep(ctx, wait); serr != nil {
				return nil, attempt, serr
			}
		}
	}
}
