package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushPullValue(t *testing.T) {
	l := newSandbox()

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int becomes float", 42, float64(42)},
		{"float", 3.14, 3.14},
		{"string", "hello", "hello"},
		{"array", []any{1, "two"}, []any{float64(1), "two"}},
		{"map", map[string]any{"key": "value"}, map[string]any{"key": "value"}},
		{"empty map", map[string]any{}, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pushValue(l, tt.value)
			got := pullValue(l, -1)
			l.Pop(1)
			assert.Equal(t, tt.want, got)
		})
	}
}
