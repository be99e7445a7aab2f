package pocketflow_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pocketflow"
)

func TestShared(t *testing.T) {
	shared := pocketflow.NewShared(map[string]any{"a": 1})

	v, ok := shared.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	shared.Set("b", "two")
	assert.Equal(t, []string{"a", "b"}, shared.Keys())
	assert.Equal(t, 2, shared.Len())

	shared.Delete("a")
	_, ok = shared.Get("a")
	assert.False(t, ok)
}

func TestSharedCopiesInitial(t *testing.T) {
	initial := map[string]any{"a": 1}
	shared := pocketflow.NewShared(initial)
	shared.Set("a", 2)
	assert.Equal(t, 1, initial["a"])
}

func TestSharedScope(t *testing.T) {
	shared := pocketflow.NewShared(nil)
	user := shared.Scope("user")
	user.Set("name", "ada")

	v, ok := shared.Get("user:name")
	assert.True(t, ok)
	assert.Equal(t, "ada", v)

	assert.Equal(t, []string{"name"}, user.Keys())
	assert.Equal(t, map[string]any{"name": "ada"}, user.Snapshot())
	assert.Equal(t, map[string]any{"user:name": "ada"}, shared.Snapshot())
}

func TestSharedUpdateIsAtomic(t *testing.T) {
	shared := pocketflow.NewShared(nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shared.Update("count", func(old any, _ bool) any {
				n, _ := old.(int)
				return n + 1
			})
		}()
	}
	wg.Wait()

	v, _ := shared.Get("count")
	assert.Equal(t, 100, v)
}

func TestSharedQuery(t *testing.T) {
	shared := pocketflow.NewShared(map[string]any{
		"docs": []any{
			map[string]any{"title": "a", "score": 3},
			map[string]any{"title": "b", "score": 9},
		},
	})

	titles, err := shared.Query("$.docs[*].title")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, titles)

	_, err = shared.Query("$[")
	assert.Error(t, err)
}

func TestSharedMarshalJSON(t *testing.T) {
	shared := pocketflow.NewShared(map[string]any{"b": 2, "a": "x"})
	data, err := json.Marshal(shared)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":2}`, string(data))
}

func TestValue(t *testing.T) {
	shared := pocketflow.NewShared(map[string]any{"n": 3})

	n, ok, err := pocketflow.Value[int](shared, "n")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok, err = pocketflow.Value[int](shared, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = pocketflow.Value[string](shared, "n")
	assert.Error(t, err)
}
