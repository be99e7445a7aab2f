package builtin

import (
	"context"
	"fmt"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/script"
	"github.com/agentstation/pocketflow/yaml"
)

// LuaNodeBuilder builds nodes that run inline or file-based Lua.
type LuaNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *LuaNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "lua",
		Category:    "script",
		Description: "Runs a sandboxed Lua script; its route function picks the action",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": withIO(map[string]any{
				"script": map[string]any{
					"type":        "string",
					"description": "Inline Lua source",
				},
				"file": map[string]any{
					"type":        "string",
					"description": "Path to a Lua file",
				},
			}),
			"oneOf": []any{
				map[string]any{"required": []any{"script"}},
				map[string]any{"required": []any{"file"}},
			},
		},
		Examples: []Example{
			{
				Name:        "Score a draft",
				Description: "Route on a computed score",
				Config: map[string]any{
					"input": "draft",
					"script": "function exec(d) return #d end\n" +
						"function route(n) if n > 100 then return 'long' end return 'short' end",
				},
				Shared: map[string]any{"draft": "hello"},
				Action: "short",
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a Lua lifecycle from a definition.
func (b *LuaNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	var s *script.Script
	if src, ok := def.Config["script"].(string); ok {
		compiled, err := script.Compile(def.Name, src)
		if err != nil {
			return pocketflow.Steps{}, err
		}
		s = compiled
	} else {
		path, _ := def.Config["file"].(string)
		info, err := script.LoadFile(path)
		if err != nil {
			return pocketflow.Steps{}, fmt.Errorf("load script %s: %w", path, err)
		}
		s = info.Script()
	}
	return scriptSteps(s, ioConfig(def)), nil
}

// ScriptNodeBuilder exposes a discovered script as its own node type.
type ScriptNodeBuilder struct {
	Info *script.Info
}

// Metadata returns the node metadata.
func (b *ScriptNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        b.Info.Name,
		Category:    b.Info.Category,
		Description: b.Info.Description,
		ConfigSchema: map[string]any{
			"type":       "object",
			"properties": ioProperties,
		},
		Since: b.Info.Version,
	}
}

// Build creates a lifecycle running the discovered script.
func (b *ScriptNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	return scriptSteps(b.Info.Script(), ioConfig(def)), nil
}

func scriptSteps(s *script.Script, keys ioKeys) pocketflow.Steps {
	return s.Steps(keys.prep, func(ctx context.Context, shared *pocketflow.Shared, _, execResult any) (any, error) {
		shared.Set(keys.output, execResult)
		return s.Route(ctx, execResult)
	})
}
