package pocketflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agentstation/pocketflow/internal/batch"
)

// Flow is a Node whose exec phase is a traversal of a graph of nodes.
//
// Starting at the start node, each node runs its full lifecycle and its
// post result picks the next node through the successor table, falling back
// to the DefaultAction edge. The traversal ends when no successor matches and
// the last action becomes the flow's exec result. Cycles are allowed and are
// not bounded by the engine.
type Flow struct {
	vertex

	startMu sync.RWMutex
	start   Node

	steps Steps
	async bool
	batch batch.Mode
}

// flowOptions holds configuration for a Flow.
type flowOptions struct {
	name   string
	params Params
	steps  Steps
}

// FlowOption configures a Flow.
type FlowOption func(*flowOptions)

// WithFlowName sets the flow's name. The default is "flow-" followed by the
// start node's name.
func WithFlowName(name string) FlowOption {
	return func(o *flowOptions) {
		o.name = name
	}
}

// WithFlowParams sets the ambient params merged into every node the flow
// runs.
func WithFlowParams(p Params) FlowOption {
	return func(o *flowOptions) {
		o.params = p
	}
}

// WithFlowSteps sets the flow's Prep and Post. Prep's result overrides the
// flow params for the traversal (or, for batch flows, is the sequence of
// param sets). Post defaults to returning the traversal's last action.
// Exec and Fallback are ignored: a flow's exec phase is the traversal.
func WithFlowSteps(steps Steps) FlowOption {
	return func(o *flowOptions) {
		o.steps = steps
	}
}

func newFlow(start Node, mode batch.Mode, async bool, opts []FlowOption) *Flow {
	var o flowOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.name == "" {
		o.name = "flow"
		if start != nil {
			o.name = "flow-" + start.Name()
		}
	}

	steps := Steps{Prep: o.steps.Prep, Post: o.steps.Post}
	if steps.Prep == nil {
		steps.Prep = Base{}.Prep
	}

	return &Flow{
		vertex: newVertex(o.name, o.params),
		start:  start,
		steps:  steps,
		async:  async,
		batch:  mode,
	}
}

// NewFlow creates a synchronous flow starting at start. A nil start is
// allowed; running such a flow yields a nil action.
func NewFlow(start Node, opts ...FlowOption) *Flow {
	return newFlow(start, batch.None, false, opts)
}

// NewAsyncFlow creates a flow that must be driven through RunAsync. It runs
// async nodes through their async path and sync nodes in place.
func NewAsyncFlow(start Node, opts ...FlowOption) *Flow {
	return newFlow(start, batch.None, true, opts)
}

// NewBatchFlow creates a flow that runs its whole graph once per param set
// returned by Prep, one set after another. Post runs once afterwards with
// Prep's result and a nil exec result.
func NewBatchFlow(start Node, opts ...FlowOption) *Flow {
	return newFlow(start, batch.Sequential, false, opts)
}

// NewParallelBatchFlow is NewBatchFlow with every traversal launched at once.
func NewParallelBatchFlow(start Node, opts ...FlowOption) *Flow {
	return newFlow(start, batch.Parallel, false, opts)
}

// NewAsyncBatchFlow is the async form of NewBatchFlow.
func NewAsyncBatchFlow(start Node, opts ...FlowOption) *Flow {
	return newFlow(start, batch.Sequential, true, opts)
}

// NewAsyncParallelBatchFlow is the async form of NewParallelBatchFlow.
func NewAsyncParallelBatchFlow(start Node, opts ...FlowOption) *Flow {
	return newFlow(start, batch.Parallel, true, opts)
}

// Start replaces the start node and returns it, so edges can be chained from
// it.
func (f *Flow) Start(n Node) Node {
	f.startMu.Lock()
	defer f.startMu.Unlock()
	f.start = n
	return n
}

// StartNode returns the current start node.
func (f *Flow) StartNode() Node {
	f.startMu.RLock()
	defer f.startMu.RUnlock()
	return f.start
}

// Async reports whether the flow is async.
func (f *Flow) Async() bool {
	return f.async
}

// RunLifecycle implements Node.
func (f *Flow) RunLifecycle(ctx context.Context, shared *Shared) (any, error) {
	if f.async {
		return nil, usageError(ErrAsyncOnly, f.name)
	}
	return f.run(ctx, shared)
}

// RunLifecycleAsync implements Node.
func (f *Flow) RunLifecycleAsync(ctx context.Context, shared *Shared) (any, error) {
	if !f.async {
		return nil, usageError(ErrSyncOnly, f.name)
	}
	return f.run(ctx, shared)
}

func (f *Flow) run(ctx context.Context, shared *Shared) (any, error) {
	ambient, ok := paramsBound(ctx)
	if !ok {
		ambient = f.Params()
		ctx = withParams(ctx, ambient)
	}

	prepResult, err := f.steps.Prep(ctx, shared)
	if err != nil {
		return nil, f.fail(ctx, PhasePrep, err)
	}

	var execResult any
	if f.batch == batch.None {
		execResult, err = f.orchestrate(ctx, shared, ambient, prepResult)
	} else {
		// Only a sequence of param sets drives traversals; anything else runs none.
		sets, _ := asSlice(prepResult)
		LoggerFrom(ctx).Debug(ctx, "batch flow", "flow", f.name, "mode", f.batch, "sets", len(sets))
		_, err = batch.Run(ctx, f.batch, sets, func(ctx context.Context, _ int, set any) (any, error) {
			return f.orchestrate(ctx, shared, ambient, set)
		})
	}
	if err != nil {
		return nil, err
	}

	if f.steps.Post == nil {
		return execResult, nil
	}
	action, err := f.steps.Post(ctx, shared, prepResult, execResult)
	if err != nil {
		return nil, f.fail(ctx, PhasePost, err)
	}
	return action, nil
}

// orchestrate walks the graph once from the start node and returns the last
// action produced. override is shallow-merged over ambient when it is
// object-shaped.
func (f *Flow) orchestrate(ctx context.Context, shared *Shared, ambient Params, override any) (any, error) {
	logger := LoggerFrom(ctx)
	params := ambient.Merge(override)

	var lastAction any
	for current := f.StartNode(); current != nil; {
		effective := params
		if effective != nil {
			current.SetParams(effective)
		} else {
			effective = current.Params()
		}

		logger.Debug(ctx, "executing node", "flow", f.name, "node", current.Name())

		action, err := f.drive(withParams(ctx, effective), current, shared)
		if err != nil {
			return nil, fmt.Errorf("flow %q: %w", f.name, err)
		}
		lastAction = action

		token := ToAction(action)
		next := successorFor(current, token)
		if next != nil {
			logger.Debug(ctx, "transition", "flow", f.name, "from", current.Name(), "action", token, "to", next.Name())
		}
		current = next
	}

	return lastAction, nil
}

// drive runs n's lifecycle in the flow's mode. Async flows take the async
// path only for async nodes.
func (f *Flow) drive(ctx context.Context, n Node, shared *Shared) (any, error) {
	if f.async && n.Async() {
		return n.RunLifecycleAsync(ctx, shared)
	}
	return n.RunLifecycle(ctx, shared)
}

func (f *Flow) fail(ctx context.Context, phase Phase, err error) error {
	LoggerFrom(ctx).Error(ctx, "flow failed", "flow", f.name, "phase", phase, "error", err)
	return &NodeError{Node: f.name, Phase: phase, Err: err}
}

// successorFor resolves token against n's successor table, falling back to
// the DefaultAction edge.
func successorFor(n Node, token string) Node {
	if next := n.Successor(token); next != nil {
		return next
	}
	if token != DefaultAction {
		return n.Successor(DefaultAction)
	}
	return nil
}

// Walk visits every node reachable from start once, depth first, following
// successor edges in sorted action order and descending into flows' start
// nodes. It stops at the first error returned by fn.
func Walk(start Node, fn func(n Node) error) error {
	visited := make(map[Node]bool)
	return walk(start, visited, fn)
}

func walk(n Node, visited map[Node]bool, fn func(Node) error) error {
	if n == nil || visited[n] {
		return nil
	}
	visited[n] = true

	if err := fn(n); err != nil {
		return err
	}

	if f, ok := n.(*Flow); ok {
		if err := walk(f.StartNode(), visited, fn); err != nil {
			return err
		}
	}

	successors := n.Successors()
	for _, action := range sortedActions(successors) {
		if err := walk(successors[action], visited, fn); err != nil {
			return err
		}
	}
	return nil
}

func sortedActions(successors map[string]Node) []string {
	actions := make([]string, 0, len(successors))
	for action := range successors {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}
