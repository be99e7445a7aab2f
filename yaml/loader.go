package yaml

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/middleware"
)

// ErrUnknownNodeType is returned when a definition names a type with no
// registered builder.
var ErrUnknownNodeType = errors.New("yaml: unknown node type")

// NodeBuilder turns a node definition into its lifecycle. The loader adds
// mode, batching, retry, timeout and params from the definition.
type NodeBuilder func(def *NodeDefinition) (pocketflow.Steps, error)

// Loader loads graph definitions and creates executable flows.
type Loader struct {
	parser *Parser

	mu       sync.RWMutex
	builders map[string]NodeBuilder
}

// NewLoader creates a loader with no registered node types.
func NewLoader() *Loader {
	return &Loader{
		parser:   NewParser(),
		builders: make(map[string]NodeBuilder),
	}
}

// RegisterNodeType registers a builder for a node type, replacing any
// previous one.
func (l *Loader) RegisterNodeType(nodeType string, builder NodeBuilder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builders[nodeType] = builder
}

// NodeTypes returns the registered node types, sorted.
func (l *Loader) NodeTypes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	types := make([]string, 0, len(l.builders))
	for t := range l.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// LoadFile loads a flow from a YAML file.
func (l *Loader) LoadFile(filename string) (*pocketflow.Flow, error) {
	def, err := l.parser.ParseFile(filename)
	if err != nil {
		return nil, err
	}
	return l.LoadDefinition(def)
}

// LoadString loads a flow from a YAML string.
func (l *Loader) LoadString(yamlStr string) (*pocketflow.Flow, error) {
	def, err := l.parser.ParseString(yamlStr)
	if err != nil {
		return nil, err
	}
	return l.LoadDefinition(def)
}

// LoadDefinition creates a flow from a parsed definition.
func (l *Loader) LoadDefinition(def *GraphDefinition) (*pocketflow.Flow, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	nodes := make(map[string]pocketflow.Node, len(def.Nodes))
	for i := range def.Nodes {
		nodeDef := &def.Nodes[i]
		node, err := l.BuildNode(nodeDef)
		if err != nil {
			return nil, fmt.Errorf("create node %s: %w", nodeDef.Name, err)
		}
		nodes[nodeDef.Name] = node
	}

	for _, conn := range def.Connections {
		pocketflow.Connect(nodes[conn.From], nodes[conn.To], conn.Action)
	}

	opts := []pocketflow.FlowOption{pocketflow.WithFlowName(def.Name)}
	if def.Params != nil {
		opts = append(opts, pocketflow.WithFlowParams(def.Params))
	}
	if len(def.BatchParams) > 0 {
		sets := make([]any, len(def.BatchParams))
		for i, set := range def.BatchParams {
			sets[i] = set
		}
		opts = append(opts, pocketflow.WithFlowSteps(pocketflow.Steps{
			Prep: func(context.Context, *pocketflow.Shared) (any, error) {
				return sets, nil
			},
		}))
	}

	return flowConstructor(def.Mode, def.Batch)(nodes[def.Start], opts...), nil
}

// BuildNode creates a single node from its definition.
func (l *Loader) BuildNode(def *NodeDefinition) (pocketflow.Node, error) {
	l.mu.RLock()
	builder, ok := l.builders[def.Type]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, def.Type)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	steps, err := builder(def)
	if err != nil {
		return nil, err
	}

	if timeout, _ := def.GetTimeout(); timeout > 0 {
		steps = middleware.Apply(steps, middleware.Timeout(timeout))
	}

	var opts []pocketflow.Option
	if def.Params != nil {
		opts = append(opts, pocketflow.WithParams(def.Params))
	}
	if def.Retry != nil {
		wait, _ := def.Retry.GetWait()
		opts = append(opts, pocketflow.WithRetry(def.Retry.MaxAttempts, wait))
	}

	return nodeConstructor(def.Mode, def.Batch)(def.Name, steps, opts...), nil
}

type newNodeFunc func(string, pocketflow.Steps, ...pocketflow.Option) pocketflow.Node

func nodeConstructor(mode, batch string) newNodeFunc {
	if mode == ModeAsync {
		switch batch {
		case BatchSequential:
			return pocketflow.NewAsyncBatchNode
		case BatchParallel:
			return pocketflow.NewAsyncParallelBatchNode
		default:
			return pocketflow.NewAsyncNode
		}
	}
	switch batch {
	case BatchSequential:
		return pocketflow.NewBatchNode
	case BatchParallel:
		return pocketflow.NewParallelBatchNode
	default:
		return pocketflow.NewNode
	}
}

type newFlowFunc func(pocketflow.Node, ...pocketflow.FlowOption) *pocketflow.Flow

func flowConstructor(mode, batch string) newFlowFunc {
	if mode == ModeAsync {
		switch batch {
		case BatchSequential:
			return pocketflow.NewAsyncBatchFlow
		case BatchParallel:
			return pocketflow.NewAsyncParallelBatchFlow
		default:
			return pocketflow.NewAsyncFlow
		}
	}
	switch batch {
	case BatchSequential:
		return pocketflow.NewBatchFlow
	case BatchParallel:
		return pocketflow.NewParallelBatchFlow
	default:
		return pocketflow.NewFlow
	}
}
