package retry_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pocketflow/internal/retry"
)

var errFail = errors.New("fail")

func TestBackoff(t *testing.T) {
	p := retry.New(5, 10*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 20*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 40*time.Millisecond, p.Backoff(3))
	assert.Zero(t, retry.New(5, 0).Backoff(3))
}

func TestBackoffSaturates(t *testing.T) {
	const maxWait = time.Duration(math.MaxInt64)
	p := retry.New(100, time.Second)

	assert.Equal(t, maxWait, p.Backoff(40))
	assert.Equal(t, maxWait, p.Backoff(64))
	assert.Equal(t, maxWait, p.Backoff(100))
	assert.Equal(t, time.Second<<33, p.Backoff(34))

	for attempt := 1; attempt <= 100; attempt++ {
		assert.Positive(t, p.Backoff(attempt), "attempt %d", attempt)
	}
}

func TestNormalize(t *testing.T) {
	p := retry.Policy{MaxAttempts: -2, BaseWait: -time.Second}.Normalize()
	assert.Equal(t, 1, p.MaxAttempts)
	assert.Zero(t, p.BaseWait)
}

func TestDo(t *testing.T) {
	var waits []time.Duration
	record := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	t.Run("succeeds after failures", func(t *testing.T) {
		waits = nil
		calls := 0
		var retries []int
		result, attempts, err := retry.New(4, time.Millisecond).Do(context.Background(), record,
			func() (any, error) {
				calls++
				if calls < 3 {
					return nil, errFail
				}
				return "ok", nil
			},
			func(err error) (any, error) { return nil, err },
			retry.Hooks{OnRetry: func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) }},
		)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, retries)
		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
	})

	t.Run("fallback after exhaustion", func(t *testing.T) {
		waits = nil
		exhausted := 0
		var fallbackErr error
		result, attempts, err := retry.New(2, 0).Do(context.Background(), record,
			func() (any, error) { return nil, errFail },
			func(err error) (any, error) {
				fallbackErr = err
				return "fallback", nil
			},
			retry.Hooks{OnExhausted: func(int, error) { exhausted++ }},
		)
		require.NoError(t, err)
		assert.Equal(t, "fallback", result)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 1, exhausted)
		assert.ErrorIs(t, fallbackErr, errFail)
		assert.Empty(t, waits)
	})

	t.Run("sleep error aborts without fallback", func(t *testing.T) {
		fallbackCalled := false
		_, attempts, err := retry.New(3, time.Second).Do(context.Background(),
			func(context.Context, time.Duration) error { return context.Canceled },
			func() (any, error) { return nil, errFail },
			func(err error) (any, error) {
				fallbackCalled = true
				return nil, err
			},
			retry.Hooks{},
		)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
		assert.False(t, fallbackCalled)
	})
}

func TestSuspend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, retry.Suspend(ctx, time.Hour), context.Canceled)
	assert.NoError(t, retry.Suspend(context.Background(), time.Millisecond))
}
