package script_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/script"
)

func TestExec(t *testing.T) {
	tests := []struct {
		name   string
		source string
		input  any
		want   any
	}{
		{
			name:   "exec function",
			source: `function exec(input) return input * 2 end`,
			input:  21,
			want:   float64(42),
		},
		{
			name:   "chunk return value",
			source: `return str_trim(input)`,
			input:  "  padded  ",
			want:   "padded",
		},
		{
			name:   "tables become maps",
			source: `function exec(input) return {greeting = "hi " .. input.name} end`,
			input:  map[string]any{"name": "ada"},
			want:   map[string]any{"greeting": "hi ada"},
		},
		{
			name:   "sequences become slices",
			source: `return str_split(input, ",")`,
			input:  "a,b,c",
			want:   []any{"a", "b", "c"},
		},
		{
			name:   "no result",
			source: `local x = 1`,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := script.Compile(tt.name, tt.source)
			require.NoError(t, err)

			got, err := s.Exec(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunsShareNoState(t *testing.T) {
	s, err := script.Compile("counter", `count = (count or 0) + 1 return count`)
	require.NoError(t, err)

	for range 3 {
		got, err := s.Exec(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, float64(1), got)
	}
}

func TestCompileError(t *testing.T) {
	_, err := script.Compile("broken", `function (`)
	assert.ErrorIs(t, err, script.ErrScript)
}

func TestRuntimeError(t *testing.T) {
	s, err := script.Compile("raises", `function exec() error("nope") end`)
	require.NoError(t, err)

	_, err = s.Exec(context.Background(), nil)
	assert.ErrorIs(t, err, script.ErrScript)
}

func TestSandbox(t *testing.T) {
	s, err := script.Compile("escape", `return os.execute == nil and require == nil and load == nil`)
	require.NoError(t, err)

	got, err := s.Exec(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestScriptNode(t *testing.T) {
	s, err := script.Compile("grade", `
function exec(score, params)
  return score >= params.pass
end

function route(passed)
  if passed then return "pass" end
  return "fail"
end
`)
	require.NoError(t, err)

	n := pocketflow.NewNode("grade", s.Steps(
		func(_ context.Context, shared *pocketflow.Shared) (any, error) {
			v, _ := shared.Get("score")
			return v, nil
		}, nil),
		pocketflow.WithParams(pocketflow.Params{"pass": 50}),
	)

	for score, want := range map[int]string{80: "pass", 20: "fail"} {
		action, err := pocketflow.Run(context.Background(), n, pocketflow.NewShared(map[string]any{"score": score}))
		require.NoError(t, err)
		assert.Equal(t, want, action)
	}
}

func TestManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upper.lua"), []byte(`-- @name: shout
-- @description: upper-cases its input
return string.upper(input)
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.lua"), []byte(`return input`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o600))

	m := script.NewManager(dir)
	require.NoError(t, m.Discover())

	infos := m.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "plain", infos[0].Name)
	assert.Equal(t, "shout", infos[1].Name)
	assert.Equal(t, "upper-cases its input", infos[1].Description)
	assert.Equal(t, "script", infos[1].Category)

	info, ok := m.Get("shout")
	require.True(t, ok)
	got, err := info.Script().Exec(context.Background(), "quiet")
	require.NoError(t, err)
	assert.Equal(t, "QUIET", got)
}
