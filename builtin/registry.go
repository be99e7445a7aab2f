// Package builtin provides the node types available to YAML workflows.
package builtin

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/script"
	"github.com/agentstation/pocketflow/yaml"
)

// ErrInvalidConfig is returned when a node's config does not match its
// type's schema.
var ErrInvalidConfig = errors.New("builtin: invalid node config")

// NodeBuilder creates node lifecycles and provides metadata.
type NodeBuilder interface {
	Metadata() NodeMetadata
	Build(def *yaml.NodeDefinition) (pocketflow.Steps, error)
}

// Registry manages the built-in node types.
type Registry struct {
	builders map[string]NodeBuilder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]NodeBuilder),
	}
}

// Register adds a node builder, replacing any with the same type.
func (r *Registry) Register(builder NodeBuilder) {
	meta := builder.Metadata()
	r.builders[meta.Type] = builder
}

// Get returns a builder by type.
func (r *Registry) Get(nodeType string) (NodeBuilder, bool) {
	builder, exists := r.builders[nodeType]
	return builder, exists
}

// All returns the metadata of every registered type, sorted by type.
func (r *Registry) All() []NodeMetadata {
	metas := make([]NodeMetadata, 0, len(r.builders))
	for _, b := range r.builders {
		metas = append(metas, b.Metadata())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Type < metas[j].Type })
	return metas
}

// Install registers every builder with a YAML loader, validating each
// node's config before building it.
func (r *Registry) Install(loader *yaml.Loader) {
	for _, builder := range r.builders {
		loader.RegisterNodeType(builder.Metadata().Type, validatingBuilder(builder))
	}
}

// Default returns a registry holding every built-in node type.
func Default() *Registry {
	registry := NewRegistry()

	// core
	registry.Register(&EchoNodeBuilder{})
	registry.Register(&DelayNodeBuilder{})
	registry.Register(&RouterNodeBuilder{})
	registry.Register(&CounterNodeBuilder{})

	// data
	registry.Register(&SetNodeBuilder{})
	registry.Register(&TemplateNodeBuilder{})
	registry.Register(&JSONPathNodeBuilder{})
	registry.Register(&ValidateNodeBuilder{})

	// script
	registry.Register(&LuaNodeBuilder{})

	return registry
}

// RegisterAll registers all built-in nodes with a YAML loader.
func RegisterAll(loader *yaml.Loader) *Registry {
	registry := Default()
	registry.Install(loader)
	return registry
}

// RegisterScripts adds every script discovered by manager as a node type
// named after the script. A script may not shadow a registered type.
func (r *Registry) RegisterScripts(manager *script.Manager) error {
	for _, info := range manager.List() {
		if _, exists := r.builders[info.Name]; exists {
			return fmt.Errorf("script %s: node type already registered", info.Name)
		}
		r.Register(&ScriptNodeBuilder{Info: info})
	}
	return nil
}

func validatingBuilder(builder NodeBuilder) yaml.NodeBuilder {
	return func(def *yaml.NodeDefinition) (pocketflow.Steps, error) {
		meta := builder.Metadata()
		if err := ValidateNodeConfig(&meta, def.Config); err != nil {
			return pocketflow.Steps{}, fmt.Errorf("config validation failed for node '%s': %w", def.Name, err)
		}
		return builder.Build(def)
	}
}
