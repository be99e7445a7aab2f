package builtin

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/ohler55/ojg/jp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/yaml"
)

// SetNodeBuilder builds nodes that write fixed values to the shared store.
type SetNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *SetNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "set",
		Category:    "data",
		Description: "Writes fixed values into the shared store",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"values": map[string]any{
					"type":        "object",
					"description": "Keys and values to write",
				},
				"action": map[string]any{
					"type":        "string",
					"description": "Action to take afterwards",
				},
			},
			"required": []any{"values"},
		},
		Examples: []Example{
			{
				Name:        "Seed state",
				Description: "Initialise a question before an agent loop",
				Config:      map[string]any{"values": map[string]any{"question": "What is Go?"}},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a set lifecycle from a definition.
func (b *SetNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	values, ok := def.Config["values"].(map[string]any)
	if !ok {
		return pocketflow.Steps{}, fmt.Errorf("%w: values must be an object", ErrInvalidConfig)
	}
	var action any
	if s, ok := def.Config["action"].(string); ok {
		action = s
	}

	return pocketflow.Steps{
		Post: func(_ context.Context, shared *pocketflow.Shared, _, _ any) (any, error) {
			for k, v := range values {
				shared.Set(k, v)
			}
			return action, nil
		},
	}, nil
}

// TemplateNodeBuilder builds text template nodes.
type TemplateNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *TemplateNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "template",
		Category:    "data",
		Description: "Renders a Go text template over the shared store, params and input",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": withIO(map[string]any{
				"template": map[string]any{
					"type":        "string",
					"description": "Template text; .shared, .params and .input are available",
				},
			}),
			"required": []any{"template"},
		},
		Examples: []Example{
			{
				Name:        "Prompt",
				Description: "Build a prompt from state",
				Config: map[string]any{
					"template": "Answer {{.shared.question}} in {{.params.lang}}",
					"output":   "prompt",
				},
				Shared: map[string]any{"question": "What is Go?"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a template lifecycle from a definition.
func (b *TemplateNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	text, _ := def.Config["template"].(string)
	tmpl, err := template.New(def.Name).Parse(text)
	if err != nil {
		return pocketflow.Steps{}, fmt.Errorf("%w: template: %v", ErrInvalidConfig, err)
	}
	keys := ioConfig(def)

	type data struct {
		shared map[string]any
		input  any
	}

	return pocketflow.Steps{
		Prep: func(ctx context.Context, shared *pocketflow.Shared) (any, error) {
			input, err := keys.prep(ctx, shared)
			return data{shared: shared.Snapshot(), input: input}, err
		},
		Exec: func(ctx context.Context, prepResult any) (any, error) {
			d := prepResult.(data)
			var sb strings.Builder
			err := tmpl.Execute(&sb, map[string]any{
				"shared": d.shared,
				"params": map[string]any(pocketflow.ParamsFrom(ctx)),
				"input":  d.input,
			})
			if err != nil {
				return nil, fmt.Errorf("render template: %w", err)
			}
			return sb.String(), nil
		},
		Post: keys.store(nil),
	}, nil
}

// JSONPathNodeBuilder builds JSONPath extraction nodes.
type JSONPathNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *JSONPathNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "jsonpath",
		Category:    "data",
		Description: "Extracts data with a JSONPath expression from an input key or the whole shared store",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": withIO(map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "JSONPath expression to extract data",
				},
				"multiple": map[string]any{
					"type":        "boolean",
					"default":     false,
					"description": "Return all matches as array (true) or first match only (false)",
				},
				"default": map[string]any{
					"description": "Default value if path not found",
				},
				"unwrap": map[string]any{
					"type":        "boolean",
					"default":     true,
					"description": "Unwrap single-element arrays",
				},
			}),
			"required": []any{"path"},
		},
		Examples: []Example{
			{
				Name:        "Extract user name",
				Description: "Get user name from nested object",
				Config:      map[string]any{"path": "$.user.name", "output": "name"},
				Shared:      map[string]any{"user": map[string]any{"name": "Alice", "age": 30}},
			},
			{
				Name:        "Extract all prices",
				Description: "Get all prices from array of items",
				Config:      map[string]any{"path": "$[*].price", "input": "items", "multiple": true},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a JSONPath lifecycle from a definition.
func (b *JSONPathNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	pathStr, _ := def.Config["path"].(string)
	if pathStr == "" {
		return pocketflow.Steps{}, fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}

	// Parse at build time so bad expressions fail the load.
	expr, err := jp.ParseString(pathStr)
	if err != nil {
		return pocketflow.Steps{}, fmt.Errorf("%w: invalid JSONPath expression: %v", ErrInvalidConfig, err)
	}

	multiple, _ := def.Config["multiple"].(bool)
	defaultValue := def.Config["default"]
	unwrap := true
	if u, ok := def.Config["unwrap"].(bool); ok {
		unwrap = u
	}
	keys := ioConfig(def)

	return pocketflow.Steps{
		Prep: func(ctx context.Context, shared *pocketflow.Shared) (any, error) {
			if keys.input == "" {
				return shared.Snapshot(), nil
			}
			return keys.prep(ctx, shared)
		},
		Exec: func(ctx context.Context, input any) (any, error) {
			results := expr.Get(input)
			pocketflow.LoggerFrom(ctx).Debug(ctx, "jsonpath matched", "node", def.Name, "path", pathStr, "matches", len(results))

			if len(results) == 0 {
				if defaultValue != nil {
					return defaultValue, nil
				}
				if multiple {
					return []any{}, nil
				}
				return nil, nil
			}
			if multiple {
				return results, nil
			}

			result := results[0]
			if unwrap {
				if arr, ok := result.([]any); ok && len(arr) == 1 {
					result = arr[0]
				}
			}
			return result, nil
		},
		Post: keys.store(nil),
	}, nil
}

// ValidateNodeBuilder builds JSON Schema validation nodes.
type ValidateNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *ValidateNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "validate",
		Category:    "data",
		Description: "Validates a shared value against a JSON Schema and routes on the outcome",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": withIO(map[string]any{
				"schema": map[string]any{
					"type":        "object",
					"description": "JSON Schema to validate against",
				},
				"fail_on_error": map[string]any{
					"type":        "boolean",
					"default":     false,
					"description": "Fail the node instead of taking the invalid edge",
				},
			}),
			"required": []any{"schema", "input"},
		},
		Examples: []Example{
			{
				Name:        "Check an order",
				Description: "Take the valid or invalid edge",
				Config: map[string]any{
					"input": "order",
					"schema": map[string]any{
						"type":     "object",
						"required": []any{"id"},
					},
				},
				Shared: map[string]any{"order": map[string]any{"id": 7}},
				Action: "valid",
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a validation lifecycle from a definition.
func (b *ValidateNodeBuilder) Build(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
	schemaDef, ok := def.Config["schema"].(map[string]any)
	if !ok {
		return pocketflow.Steps{}, fmt.Errorf("%w: schema must be an object", ErrInvalidConfig)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDef))
	if err != nil {
		return pocketflow.Steps{}, fmt.Errorf("%w: schema: %v", ErrInvalidConfig, err)
	}
	failOnError, _ := def.Config["fail_on_error"].(bool)
	keys := ioConfig(def)

	return pocketflow.Steps{
		Prep: keys.prep,
		Exec: func(ctx context.Context, input any) (any, error) {
			result, err := schema.Validate(gojsonschema.NewGoLoader(input))
			if err != nil {
				return nil, fmt.Errorf("validation error: %w", err)
			}

			response := map[string]any{
				"valid":  result.Valid(),
				"errors": []any{},
				"data":   input,
			}
			if result.Valid() {
				return response, nil
			}

			errs := make([]any, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				errs = append(errs, map[string]any{
					"field":       e.Field(),
					"type":        e.Type(),
					"description": e.Description(),
				})
			}
			response["errors"] = errs
			pocketflow.LoggerFrom(ctx).Debug(ctx, "validation failed", "node", def.Name, "errors", len(errs))

			if failOnError {
				return nil, fmt.Errorf("validation failed: %s", joinErrors(result.Errors()))
			}
			return response, nil
		},
		Post: func(_ context.Context, shared *pocketflow.Shared, _, execResult any) (any, error) {
			shared.Set(keys.output, execResult)
			if execResult.(map[string]any)["valid"] == true {
				return "valid", nil
			}
			return "invalid", nil
		},
	}, nil
}
