package builtin_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/builtin"
	"github.com/agentstation/pocketflow/script"
	"github.com/agentstation/pocketflow/yaml"
)

// build creates a node of nodeType through the validating loader path.
func build(t *testing.T, nodeType string, config map[string]any) pocketflow.Node {
	t.Helper()
	loader := yaml.NewLoader()
	builtin.RegisterAll(loader)
	n, err := loader.BuildNode(&yaml.NodeDefinition{Name: nodeType + "-node", Type: nodeType, Config: config})
	require.NoError(t, err)
	return n
}

func TestRegistry(t *testing.T) {
	r := builtin.Default()

	var types []string
	for _, meta := range r.All() {
		types = append(types, meta.Type)
		assert.NotEmpty(t, meta.Description, meta.Type)
		assert.NotEmpty(t, meta.ConfigSchema, meta.Type)
	}
	assert.Equal(t, []string{
		"counter", "delay", "echo", "jsonpath", "lua", "router", "set", "template", "validate",
	}, types)

	_, ok := r.Get("echo")
	assert.True(t, ok)
	_, ok = r.Get("http")
	assert.False(t, ok)
}

func TestConfigValidation(t *testing.T) {
	loader := yaml.NewLoader()
	builtin.RegisterAll(loader)

	tests := []struct {
		name   string
		typ    string
		config map[string]any
	}{
		{name: "counter without limit", typ: "counter", config: map[string]any{"key": "n"}},
		{name: "counter with zero limit", typ: "counter", config: map[string]any{"key": "n", "limit": 0}},
		{name: "jsonpath without path", typ: "jsonpath", config: map[string]any{}},
		{name: "lua with nothing to run", typ: "lua", config: map[string]any{}},
		{name: "echo with numeric message", typ: "echo", config: map[string]any{"message": 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.BuildNode(&yaml.NodeDefinition{Name: "n", Type: tt.typ, Config: tt.config})
			assert.ErrorIs(t, err, builtin.ErrInvalidConfig)
		})
	}
}

func TestValidateAllNodeConfigs(t *testing.T) {
	r := builtin.Default()
	assert.NoError(t, builtin.ValidateAllNodeConfigs(r, map[string]map[string]any{
		"echo":  {"message": "hi"},
		"delay": {"duration": "5ms"},
	}))
	assert.Error(t, builtin.ValidateAllNodeConfigs(r, map[string]map[string]any{"nope": {}}))
}

func TestEcho(t *testing.T) {
	n := build(t, "echo", map[string]any{"message": "hi", "input": "in", "output": "out"})
	shared := pocketflow.NewShared(map[string]any{"in": 42})

	_, err := pocketflow.Run(context.Background(), n, shared)
	require.NoError(t, err)

	out, _ := shared.Get("out")
	assert.Equal(t, map[string]any{"message": "hi", "input": 42, "node": "echo-node"}, out)
}

func TestDelay(t *testing.T) {
	n := build(t, "delay", map[string]any{"duration": "1h"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := pocketflow.Run(ctx, n, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRouter(t *testing.T) {
	t.Run("fixed route", func(t *testing.T) {
		action, err := pocketflow.Run(context.Background(), build(t, "router", map[string]any{"route": "success"}), nil)
		require.NoError(t, err)
		assert.Equal(t, "success", action)
	})

	t.Run("route from shared key", func(t *testing.T) {
		n := build(t, "router", map[string]any{"route": "fallback", "key": "decision"})

		action, err := pocketflow.Run(context.Background(), n, pocketflow.NewShared(map[string]any{"decision": "search"}))
		require.NoError(t, err)
		assert.Equal(t, "search", action)

		action, err = pocketflow.Run(context.Background(), n, nil)
		require.NoError(t, err)
		assert.Equal(t, "fallback", action)
	})
}

func TestJSONPath(t *testing.T) {
	t.Run("whole store", func(t *testing.T) {
		n := build(t, "jsonpath", map[string]any{"path": "$.user.name", "output": "name"})
		shared := pocketflow.NewShared(map[string]any{"user": map[string]any{"name": "Alice"}})

		_, err := pocketflow.Run(context.Background(), n, shared)
		require.NoError(t, err)
		name, _ := shared.Get("name")
		assert.Equal(t, "Alice", name)
	})

	t.Run("multiple from input key", func(t *testing.T) {
		n := build(t, "jsonpath", map[string]any{"path": "$[*].price", "input": "items", "multiple": true, "output": "prices"})
		shared := pocketflow.NewShared(map[string]any{"items": []any{
			map[string]any{"price": 10},
			map[string]any{"price": 3},
		}})

		_, err := pocketflow.Run(context.Background(), n, shared)
		require.NoError(t, err)
		prices, _ := shared.Get("prices")
		assert.Equal(t, []any{10, 3}, prices)
	})

	t.Run("default when missing", func(t *testing.T) {
		n := build(t, "jsonpath", map[string]any{"path": "$.missing", "default": "none"})
		shared := pocketflow.NewShared(nil)

		_, err := pocketflow.Run(context.Background(), n, shared)
		require.NoError(t, err)
		got, _ := shared.Get("jsonpath-node")
		assert.Equal(t, "none", got)
	})

	t.Run("bad expression fails the build", func(t *testing.T) {
		_, err := (&builtin.JSONPathNodeBuilder{}).Build(&yaml.NodeDefinition{Name: "j", Config: map[string]any{"path": "$[["}})
		assert.ErrorIs(t, err, builtin.ErrInvalidConfig)
	})
}

func TestValidate(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"id"},
	}

	t.Run("routes on outcome", func(t *testing.T) {
		n := build(t, "validate", map[string]any{"input": "order", "schema": schema, "output": "report"})

		shared := pocketflow.NewShared(map[string]any{"order": map[string]any{"id": 1}})
		action, err := pocketflow.Run(context.Background(), n, shared)
		require.NoError(t, err)
		assert.Equal(t, "valid", action)

		shared = pocketflow.NewShared(map[string]any{"order": map[string]any{}})
		action, err = pocketflow.Run(context.Background(), n, shared)
		require.NoError(t, err)
		assert.Equal(t, "invalid", action)

		report, _ := shared.Get("report")
		assert.Len(t, report.(map[string]any)["errors"], 1)
	})

	t.Run("fail on error", func(t *testing.T) {
		n := build(t, "validate", map[string]any{"input": "order", "schema": schema, "fail_on_error": true})
		_, err := pocketflow.Run(context.Background(), n, pocketflow.NewShared(map[string]any{"order": "nope"}))
		assert.Error(t, err)
	})
}

func TestTemplate(t *testing.T) {
	n := build(t, "template", map[string]any{
		"template": "{{.shared.question}} in {{.params.lang}}",
		"output":   "prompt",
	})
	n.SetParams(pocketflow.Params{"lang": "Go"})
	shared := pocketflow.NewShared(map[string]any{"question": "Hello?"})

	_, err := pocketflow.Run(context.Background(), n, shared)
	require.NoError(t, err)
	prompt, _ := shared.Get("prompt")
	assert.Equal(t, "Hello? in Go", prompt)
}

func TestLua(t *testing.T) {
	src := `
function exec(d) return string.upper(d) end
function route(s) if #s > 3 then return "long" end return "short" end
`
	n := build(t, "lua", map[string]any{"script": src, "input": "draft", "output": "loud"})
	shared := pocketflow.NewShared(map[string]any{"draft": "hi"})

	action, err := pocketflow.Run(context.Background(), n, shared)
	require.NoError(t, err)
	assert.Equal(t, "short", action)
	loud, _ := shared.Get("loud")
	assert.Equal(t, "HI", loud)
}

func TestLuaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "double.lua")
	require.NoError(t, os.WriteFile(path, []byte("return input * 2\n"), 0o600))

	n := build(t, "lua", map[string]any{"file": path, "input": "n"})
	shared := pocketflow.NewShared(map[string]any{"n": 21})

	action, err := pocketflow.Run(context.Background(), n, shared)
	require.NoError(t, err)
	assert.Nil(t, action)
	got, _ := shared.Get("lua-node")
	assert.Equal(t, float64(42), got)
}

func TestRegisterScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shout.lua"), []byte(`-- @description: upper-cases its input
return string.upper(input)
`), 0o600))

	m := script.NewManager(dir)
	require.NoError(t, m.Discover())

	r := builtin.Default()
	require.NoError(t, r.RegisterScripts(m))
	loader := yaml.NewLoader()
	r.Install(loader)
	assert.Contains(t, loader.NodeTypes(), "shout")

	n, err := loader.BuildNode(&yaml.NodeDefinition{Name: "s", Type: "shout", Config: map[string]any{"input": "msg"}})
	require.NoError(t, err)
	shared := pocketflow.NewShared(map[string]any{"msg": "quiet"})
	_, err = pocketflow.Run(context.Background(), n, shared)
	require.NoError(t, err)
	got, _ := shared.Get("s")
	assert.Equal(t, "QUIET", got)

	// A second registration collides with itself.
	assert.Error(t, r.RegisterScripts(m))
}

func TestAgentLoopFromYAML(t *testing.T) {
	loader := yaml.NewLoader()
	builtin.RegisterAll(loader)

	flow, err := loader.LoadString(`
name: loop
start: seed
nodes:
  - name: seed
    type: set
    config:
      values:
        question: What is Go?
  - name: think
    type: counter
    config:
      key: round
      limit: 3
  - name: answer
    type: template
    config:
      template: "{{.shared.question}} after {{.shared.round}} rounds"
      output: answer
connections:
  - from: seed
    to: think
  - from: think
    to: think
    action: continue
  - from: think
    to: answer
    action: done
`)
	require.NoError(t, err)

	shared := pocketflow.NewShared(nil)
	_, err = pocketflow.Run(context.Background(), flow, shared)
	require.NoError(t, err)

	answer, _ := shared.Get("answer")
	assert.Equal(t, "What is Go? after 3 rounds", answer)
}
