package batch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pocketflow/internal/batch"
)

func TestRunKeepsOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	for _, mode := range []batch.Mode{batch.Sequential, batch.Parallel} {
		t.Run(mode.String(), func(t *testing.T) {
			results, err := batch.Run(context.Background(), mode, items, func(_ context.Context, _ int, item int) (int, error) {
				time.Sleep(time.Duration(item) * time.Millisecond)
				return item * 10, nil
			})
			require.NoError(t, err)
			assert.Equal(t, []int{50, 10, 40, 20, 30}, results)
		})
	}
}

func TestSequentialStopsAtFirstError(t *testing.T) {
	errStop := errors.New("stop")
	var calls int
	_, err := batch.Run(context.Background(), batch.Sequential, []int{1, 2, 3}, func(_ context.Context, i int, _ int) (int, error) {
		calls++
		if i == 1 {
			return 0, errStop
		}
		return 0, nil
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 2, calls)
}

func TestParallelWaitsForAll(t *testing.T) {
	errFirst := errors.New("first")
	var done atomic.Int32
	_, err := batch.Run(context.Background(), batch.Parallel, []int{0, 1, 2, 3}, func(_ context.Context, i int, _ int) (int, error) {
		if i == 0 {
			return 0, errFirst
		}
		time.Sleep(5 * time.Millisecond)
		done.Add(1)
		return i, nil
	})
	assert.ErrorIs(t, err, errFirst)
	assert.Equal(t, int32(3), done.Load())
}

func TestRunEmpty(t *testing.T) {
	results, err := batch.Run(context.Background(), batch.Parallel, []string{}, func(context.Context, int, string) (string, error) {
		return "", nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "none", batch.None.String())
	assert.Equal(t, "mode(9)", batch.Mode(9).String())
}
