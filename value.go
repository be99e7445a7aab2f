package pocketflow

import (
	"reflect"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// DefaultAction names the unlabeled edge. A traversal falls back to it when
// a node's action has no registered successor.
const DefaultAction = "default"

// Params is the object-shaped configuration merged into every execution of
// a node.
type Params map[string]any

// Clone returns a shallow copy of p. A nil Params stays nil.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Merge returns p overlaid with override, one level deep, override winning.
// Only object-shaped overrides (Params or map[string]any) are applied; any
// other value leaves p unchanged. p itself is never modified.
func (p Params) Merge(override any) Params {
	var src map[string]any
	switch o := override.(type) {
	case Params:
		src = o
	case map[string]any:
		src = o
	default:
		return p
	}
	merged := make(Params, len(p)+len(src))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range src {
		merged[k] = v
	}
	return merged
}

var actionOptions = ojg.Options{Sort: true}

// ToAction canonicalizes a post result into an action token. Strings are
// used as is, nil and "" map to DefaultAction, and every other value maps to
// its compact JSON form with sorted keys.
func ToAction(v any) string {
	switch a := v.(type) {
	case nil:
		return DefaultAction
	case string:
		if a == "" {
			return DefaultAction
		}
		return a
	case Params:
		return oj.JSON(map[string]any(a), &actionOptions)
	default:
		return oj.JSON(a, &actionOptions)
	}
}

// asItems views v as a batch sequence. Slices and arrays are expanded in
// order; every other value, nil included, is a single-element sequence.
func asItems(v any) []any {
	if items, ok := asSlice(v); ok {
		return items
	}
	return []any{v}
}

// asSlice expands v when it is a slice or array.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
