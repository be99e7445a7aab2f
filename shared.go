package pocketflow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Shared is the blackboard threaded by reference through one workflow run.
//
// There is no schema: cooperating nodes agree on keys by convention, and a
// key is owned by whichever node documents that it writes it. Every single
// operation is atomic, so parallel branches may write disjoint keys freely.
// Writes to the same key from concurrent branches are last-writer-wins; use
// Update for read-modify-write, or give each branch its own Scope.
type Shared struct {
	mu     *sync.RWMutex
	data   map[string]any
	prefix string
}

// NewShared creates a shared state seeded with a shallow copy of initial.
func NewShared(initial map[string]any) *Shared {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &Shared{
		mu:   &sync.RWMutex{},
		data: data,
	}
}

// Get retrieves a value by key.
func (s *Shared) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, exists := s.data[s.prefix+key]
	return val, exists
}

// Set stores a value under key.
func (s *Shared) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[s.prefix+key] = value
}

// Delete removes a key.
func (s *Shared) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, s.prefix+key)
}

// Update replaces the value under key with fn(old, exists) while holding the
// write lock, and returns the stored value. fn must not call back into s.
func (s *Shared) Update(key string, fn func(old any, exists bool) any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	fullKey := s.prefix + key
	old, exists := s.data[fullKey]
	val := fn(old, exists)
	s.data[fullKey] = val
	return val
}

// Keys returns the keys visible in this scope, sorted.
func (s *Shared) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys visible in this scope.
func (s *Shared) Len() int {
	return len(s.Keys())
}

// Snapshot returns a shallow copy of the keys visible in this scope.
func (s *Shared) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]any, len(s.data))
	for k, v := range s.data {
		if strings.HasPrefix(k, s.prefix) {
			snap[strings.TrimPrefix(k, s.prefix)] = v
		}
	}
	return snap
}

// Scope returns a view of the same state whose keys are prefixed with
// "prefix:". Scopes share data and lock with their parent.
func (s *Shared) Scope(prefix string) *Shared {
	return &Shared{
		mu:     s.mu,
		data:   s.data,
		prefix: s.prefix + prefix + ":",
	}
}

// Query evaluates a JSONPath expression against a snapshot of this scope.
func (s *Shared) Query(path string) ([]any, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("pocketflow: invalid JSONPath %q: %w", path, err)
	}
	return expr.Get(s.Snapshot()), nil
}

// MarshalJSON renders a snapshot of this scope as a JSON object.
func (s *Shared) MarshalJSON() ([]byte, error) {
	return []byte(oj.JSON(s.Snapshot(), &actionOptions)), nil
}

// Value retrieves a typed value from shared state.
func Value[T any](s *Shared, key string) (T, bool, error) {
	var zero T
	val, ok := s.Get(key)
	if !ok {
		return zero, false, nil
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false, fmt.Errorf("pocketflow: key %q holds %T, not %T", key, val, zero)
	}
	return typed, true, nil
}
