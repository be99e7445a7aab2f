// Package yaml loads workflow graphs from YAML definitions.
package yaml

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDefinition is returned for definitions that fail schema or
// structural validation.
var ErrInvalidDefinition = errors.New("yaml: invalid definition")

// Execution modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Batch policies.
const (
	BatchNone       = "none"
	BatchSequential = "sequential"
	BatchParallel   = "parallel"
)

// GraphDefinition represents a complete graph defined in YAML. The graph
// becomes a Flow; Mode and Batch select which kind.
type GraphDefinition struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Version     string           `yaml:"version,omitempty"`
	Mode        string           `yaml:"mode,omitempty"`
	Batch       string           `yaml:"batch,omitempty"`
	Params      map[string]any   `yaml:"params,omitempty"`
	BatchParams []map[string]any `yaml:"batch_params,omitempty"`
	Metadata    map[string]any   `yaml:"metadata,omitempty"`
	Nodes       []NodeDefinition `yaml:"nodes"`
	Connections []Connection     `yaml:"connections,omitempty"`
	Start       string           `yaml:"start"`
}

// NodeDefinition represents a node in YAML format.
type NodeDefinition struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description,omitempty"`
	Mode        string         `yaml:"mode,omitempty"`
	Batch       string         `yaml:"batch,omitempty"`
	Config      map[string]any `yaml:"config,omitempty"`
	Params      map[string]any `yaml:"params,omitempty"`
	Retry       *RetryConfig   `yaml:"retry,omitempty"`
	Timeout     string         `yaml:"timeout,omitempty"`
}

// Connection represents an edge between nodes. An empty action is the
// default edge.
type Connection struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Action string `yaml:"action,omitempty"`
}

// RetryConfig represents retry configuration in YAML.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Wait        string `yaml:"wait,omitempty"`
}

// Validate checks the structural rules that the JSON Schema cannot express:
// unique node names and edges that refer to declared nodes.
func (gd *GraphDefinition) Validate() error {
	if gd.Name == "" {
		return fmt.Errorf("%w: graph name is required", ErrInvalidDefinition)
	}
	if gd.Start == "" {
		return fmt.Errorf("%w: start node is required", ErrInvalidDefinition)
	}
	if len(gd.Nodes) == 0 {
		return fmt.Errorf("%w: at least one node is required", ErrInvalidDefinition)
	}
	if err := validateMode(gd.Mode, gd.Batch); err != nil {
		return fmt.Errorf("%w: graph %s: %v", ErrInvalidDefinition, gd.Name, err)
	}

	names := make(map[string]bool, len(gd.Nodes))
	for i := range gd.Nodes {
		node := &gd.Nodes[i]
		if node.Name == "" {
			return fmt.Errorf("%w: node name is required", ErrInvalidDefinition)
		}
		if names[node.Name] {
			return fmt.Errorf("%w: duplicate node %s", ErrInvalidDefinition, node.Name)
		}
		names[node.Name] = true

		if err := node.Validate(); err != nil {
			return fmt.Errorf("%w: node %s: %v", ErrInvalidDefinition, node.Name, err)
		}
	}

	if !names[gd.Start] {
		return fmt.Errorf("%w: start node %s not found", ErrInvalidDefinition, gd.Start)
	}

	for _, conn := range gd.Connections {
		if !names[conn.From] {
			return fmt.Errorf("%w: connection from node %s not found", ErrInvalidDefinition, conn.From)
		}
		if !names[conn.To] {
			return fmt.Errorf("%w: connection to node %s not found", ErrInvalidDefinition, conn.To)
		}
	}

	return nil
}

// Validate checks a single node definition.
func (nd *NodeDefinition) Validate() error {
	if nd.Type == "" {
		return fmt.Errorf("node type is required")
	}
	if err := validateMode(nd.Mode, nd.Batch); err != nil {
		return err
	}
	if _, err := nd.GetTimeout(); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if nd.Retry != nil {
		if err := nd.Retry.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
	}
	return nil
}

// Validate checks if the retry config is valid.
func (rc *RetryConfig) Validate() error {
	if rc.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if _, err := rc.GetWait(); err != nil {
		return fmt.Errorf("invalid wait: %w", err)
	}
	return nil
}

// GetTimeout returns the parsed timeout, zero when unset.
func (nd *NodeDefinition) GetTimeout() (time.Duration, error) {
	if nd.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(nd.Timeout)
}

// GetWait returns the parsed base wait, zero when unset.
func (rc *RetryConfig) GetWait() (time.Duration, error) {
	if rc.Wait == "" {
		return 0, nil
	}
	return time.ParseDuration(rc.Wait)
}

func validateMode(mode, batch string) error {
	switch mode {
	case "", ModeSync, ModeAsync:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	switch batch {
	case "", BatchNone, BatchSequential, BatchParallel:
	default:
		return fmt.Errorf("unknown batch policy %q", batch)
	}
	return nil
}
