package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/yaml"
)

// ioKeys holds the shared keys a node reads in prep and writes in post.
type ioKeys struct {
	input  string
	output string
}

func ioConfig(def *yaml.NodeDefinition) ioKeys {
	keys := ioKeys{output: def.Name}
	keys.input, _ = def.Config["input"].(string)
	if out, ok := def.Config["output"].(string); ok && out != "" {
		keys.output = out
	}
	return keys
}

func (k ioKeys) prep(_ context.Context, shared *pocketflow.Shared) (any, error) {
	if k.input == "" {
		return nil, nil
	}
	v, _ := shared.Get(k.input)
	return v, nil
}

// store returns a post function that writes the exec result to the output
// key and takes action.
func (k ioKeys) store(action any) pocketflow.PostFunc {
	return func(_ context.Context, shared *pocketflow.Shared, _, execResult any) (any, error) {
		shared.Set(k.output, execResult)
		return action, nil
	}
}

// EchoNodeBuilder builds echo nodes.
type EchoNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *EchoNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "echo",
		Category:    "core",
		Description: "Outputs a message and passes through input",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": withIO(map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "Message to output",
					"default":     "Hello from echo node",
				},
			}),
		},
		Examples: []Example{
			{
				Name:        "Simple echo",
				Description: "Write a message to the shared store",
				Config:      map[string]any{"message": "Hello, World!", "output": "greeting"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates an echo lifecycle from a definition.
func (b *EchoNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	message := "Hello from echo node"
	if msg, ok := def.Config["message"].(string); ok {
		message = msg
	}
	keys := ioConfig(def)

	return pocketflow.Steps{
		Prep: keys.prep,
		Exec: func(ctx context.Context, input any) (any, error) {
			pocketflow.LoggerFrom(ctx).Debug(ctx, "echo", "node", def.Name, "message", message)
			return map[string]any{
				"message": message,
				"input":   input,
				"node":    def.Name,
			}, nil
		},
		Post: keys.store(nil),
	}, nil
}

// DelayNodeBuilder builds delay nodes.
type DelayNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *DelayNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "delay",
		Category:    "core",
		Description: "Delays execution for a specified duration",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"duration": map[string]any{
					"type":        "string",
					"description": "Duration to delay (e.g., '1s', '500ms')",
					"default":     "1s",
				},
			},
		},
		Examples: []Example{
			{
				Name:        "Short delay",
				Description: "Delay for 100 milliseconds",
				Config:      map[string]any{"duration": "100ms"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a delay lifecycle from a definition.
func (b *DelayNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	duration := time.Second
	if s, ok := def.Config["duration"].(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return pocketflow.Steps{}, fmt.Errorf("%w: duration: %v", ErrInvalidConfig, err)
		}
		duration = d
	}

	return pocketflow.Steps{
		Exec: func(ctx context.Context, input any) (any, error) {
			timer := time.NewTimer(duration)
			defer timer.Stop()
			select {
			case <-timer.C:
				return input, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}, nil
}

// RouterNodeBuilder builds router nodes.
type RouterNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *RouterNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "router",
		Category:    "core",
		Description: "Takes a fixed action, or the action stored under a shared key",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"route": map[string]any{
					"type":        "string",
					"description": "The action to take",
					"default":     pocketflow.DefaultAction,
				},
				"key": map[string]any{
					"type":        "string",
					"description": "Shared key whose value is the action; overrides route when present",
				},
			},
		},
		Examples: []Example{
			{
				Name:        "Fixed route",
				Description: "Always take the success edge",
				Config:      map[string]any{"route": "success"},
				Action:      "success",
			},
			{
				Name:        "Routing on state",
				Description: "Take the edge named by shared[\"decision\"]",
				Config:      map[string]any{"key": "decision"},
				Shared:      map[string]any{"decision": "search"},
				Action:      "search",
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a router lifecycle from a definition.
func (b *RouterNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	route := pocketflow.DefaultAction
	if r, ok := def.Config["route"].(string); ok {
		route = r
	}
	key, _ := def.Config["key"].(string)

	return pocketflow.Steps{
		Post: func(ctx context.Context, shared *pocketflow.Shared, _, _ any) (any, error) {
			action := any(route)
			if key != "" {
				if v, ok := shared.Get(key); ok {
					action = v
				}
			}
			pocketflow.LoggerFrom(ctx).Debug(ctx, "routing", "node", def.Name, "action", action)
			return action, nil
		},
	}, nil
}

// CounterNodeBuilder builds counter nodes, the usual guard on a loop edge.
type CounterNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *CounterNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "counter",
		Category:    "core",
		Description: "Increments a shared counter and loops until it reaches a limit",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Shared key holding the count",
				},
				"limit": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"description": "Count at which the done action is taken",
				},
				"loop": map[string]any{
					"type":    "string",
					"default": "continue",
				},
				"done": map[string]any{
					"type":    "string",
					"default": "done",
				},
			},
			"required": []any{"key", "limit"},
		},
		Examples: []Example{
			{
				Name:        "Three rounds",
				Description: "Take the continue edge twice, then done",
				Config:      map[string]any{"key": "round", "limit": 3},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a counter lifecycle from a definition.
func (b *CounterNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	key, _ := def.Config["key"].(string)
	limit, ok := toInt(def.Config["limit"])
	if key == "" || !ok {
		return pocketflow.Steps{}, fmt.Errorf("%w: key and limit are required", ErrInvalidConfig)
	}
	loop, done := "continue", "done"
	if s, ok := def.Config["loop"].(string); ok {
		loop = s
	}
	if s, ok := def.Config["done"].(string); ok {
		done = s
	}

	return pocketflow.Steps{
		Post: func(_ context.Context, shared *pocketflow.Shared, _, _ any) (any, error) {
			count := shared.Update(key, func(old any, _ bool) any {
				n, _ := toInt(old)
				return n + 1
			}).(int)
			if count < limit {
				return loop, nil
			}
			return done, nil
		},
	}, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
