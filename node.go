package pocketflow

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/pocketflow/internal/batch"
	"github.com/agentstation/pocketflow/internal/retry"
)

// Node is a vertex of a workflow graph. Simple nodes, batch nodes and flows
// all implement it, so a flow can be used wherever a node is expected.
type Node interface {
	// Name returns the node's identifier.
	Name() string

	// Params returns a copy of the node's ambient params.
	Params() Params

	// SetParams replaces the node's ambient params.
	SetParams(p Params)

	// Connect registers next as the successor for action, replacing any
	// previous successor for that action, and returns next for chaining.
	Connect(action string, next Node) Node

	// Successor returns the successor registered for action, or nil.
	Successor(action string) Node

	// Successors returns a copy of the successor table.
	Successors() map[string]Node

	// Async reports whether the node must be driven through RunAsync.
	Async() bool

	// RunLifecycle drives the full lifecycle without suspending.
	RunLifecycle(ctx context.Context, shared *Shared) (any, error)

	// RunLifecycleAsync drives the full lifecycle, suspending at phase
	// boundaries when ctx allows.
	RunLifecycleAsync(ctx context.Context, shared *Shared) (any, error)
}

// vertex holds what every Node shares: identity, params and edges.
type vertex struct {
	name string

	mu         sync.RWMutex
	params     Params
	successors map[string]Node
}

func newVertex(name string, params Params) vertex {
	return vertex{
		name:       name,
		params:     params.Clone(),
		successors: make(map[string]Node),
	}
}

// Name returns the node's identifier.
func (v *vertex) Name() string {
	return v.name
}

// Params returns a copy of the ambient params.
func (v *vertex) Params() Params {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.params.Clone()
}

// SetParams replaces the ambient params.
func (v *vertex) SetParams(p Params) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params = p.Clone()
}

// Connect registers next under action and returns next.
func (v *vertex) Connect(action string, next Node) Node {
	if action == "" {
		action = DefaultAction
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.successors[action] = next
	return next
}

// Successor returns the node registered under action.
func (v *vertex) Successor(action string) Node {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.successors[action]
}

// Successors returns a copy of the successor table.
func (v *vertex) Successors() map[string]Node {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]Node, len(v.successors))
	for k, n := range v.successors {
		out[k] = n
	}
	return out
}

// node is the private implementation of Node for simple and batch nodes.
type node struct {
	vertex

	steps  Steps
	policy retry.Policy
	batch  batch.Mode
	async  bool
}

// nodeOptions holds configuration for a node.
type nodeOptions struct {
	maxAttempts int
	baseWait    time.Duration
	params      Params
}

// Option configures a node.
type Option func(*nodeOptions)

// WithRetry configures the exec phase to run up to maxAttempts times,
// waiting baseWait * 2^(n-1) after the n-th failure. maxAttempts below 1 is
// treated as 1.
func WithRetry(maxAttempts int, baseWait time.Duration) Option {
	return func(o *nodeOptions) {
		o.maxAttempts = maxAttempts
		o.baseWait = baseWait
	}
}

// WithParams sets the node's initial ambient params.
func WithParams(p Params) Option {
	return func(o *nodeOptions) {
		o.params = p
	}
}

func newNode(name string, steps Steps, mode batch.Mode, async bool, opts []Option) *node {
	o := nodeOptions{maxAttempts: 1}
	for _, opt := range opts {
		opt(&o)
	}

	return &node{
		vertex: newVertex(name, o.params),
		steps:  steps.WithDefaults(),
		policy: retry.New(o.maxAttempts, o.baseWait),
		batch:  mode,
		async:  async,
	}
}

// NewNode creates a synchronous node.
//
// Example:
//
//	fetch := pocketflow.NewNode("fetch",
//	    pocketflow.Steps{
//	        Prep: func(ctx context.Context, shared *pocketflow.Shared) (any, error) {
//	            url, _ := shared.Get("url")
//	            return url, nil
//	        },
//	        Exec: fetchURL,
//	    },
//	    pocketflow.WithRetry(3, 100*time.Millisecond),
//	)
func NewNode(name string, steps Steps, opts ...Option) Node {
	return newNode(name, steps, batch.None, false, opts)
}

// NewBatchNode creates a synchronous node whose Exec runs once per item of
// the prep result, in order, each item with its own retries. Post receives
// the results as a []any in input order.
func NewBatchNode(name string, steps Steps, opts ...Option) Node {
	return newNode(name, steps, batch.Sequential, false, opts)
}

// NewParallelBatchNode is NewBatchNode with every item launched at once.
func NewParallelBatchNode(name string, steps Steps, opts ...Option) Node {
	return newNode(name, steps, batch.Parallel, false, opts)
}

// NewAsyncNode creates a node that must be driven through RunAsync or an
// async flow. Backoff waits between attempts observe ctx.
func NewAsyncNode(name string, steps Steps, opts ...Option) Node {
	return newNode(name, steps, batch.None, true, opts)
}

// NewAsyncBatchNode is the async form of NewBatchNode.
func NewAsyncBatchNode(name string, steps Steps, opts ...Option) Node {
	return newNode(name, steps, batch.Sequential, true, opts)
}

// NewAsyncParallelBatchNode is the async form of NewParallelBatchNode.
func NewAsyncParallelBatchNode(name string, steps Steps, opts ...Option) Node {
	return newNode(name, steps, batch.Parallel, true, opts)
}

// Async reports whether the node is async.
func (n *node) Async() bool {
	return n.async
}

// RunLifecycle implements Node.
func (n *node) RunLifecycle(ctx context.Context, shared *Shared) (any, error) {
	if n.async {
		return nil, usageError(ErrAsyncOnly, n.name)
	}
	return n.run(ctx, shared, retry.Block)
}

// RunLifecycleAsync implements Node.
func (n *node) RunLifecycleAsync(ctx context.Context, shared *Shared) (any, error) {
	if !n.async {
		return nil, usageError(ErrSyncOnly, n.name)
	}
	return n.run(ctx, shared, retry.Suspend)
}

// run executes prep, the retry-wrapped exec and post. A terminal failure
// returns before post.
func (n *node) run(ctx context.Context, shared *Shared, sleep retry.Sleeper) (any, error) {
	if _, ok := paramsBound(ctx); !ok {
		ctx = withParams(ctx, n.Params())
	}

	prepResult, err := n.steps.Prep(ctx, shared)
	if err != nil {
		return nil, n.fail(ctx, PhasePrep, 0, err)
	}

	execResult, err := n.execute(ctx, prepResult, sleep)
	if err != nil {
		return nil, err
	}

	action, err := n.steps.Post(ctx, shared, prepResult, execResult)
	if err != nil {
		return nil, n.fail(ctx, PhasePost, 0, err)
	}

	return action, nil
}

func (n *node) execute(ctx context.Context, prepResult any, sleep retry.Sleeper) (any, error) {
	if n.batch == batch.None {
		return n.execOne(ctx, prepResult, sleep)
	}

	items := asItems(prepResult)
	LoggerFrom(ctx).Debug(ctx, "batch exec", "node", n.name, "mode", n.batch, "items", len(items))

	return batch.Run(ctx, n.batch, items, func(ctx context.Context, _ int, item any) (any, error) {
		return n.execOne(ctx, item, sleep)
	})
}

// execOne runs the retry-wrapped exec for a single input.
func (n *node) execOne(ctx context.Context, input any, sleep retry.Sleeper) (any, error) {
	logger := LoggerFrom(ctx)

	result, attempts, err := n.policy.Do(ctx, sleep,
		func() (any, error) {
			return n.steps.Exec(ctx, input)
		},
		func(execErr error) (any, error) {
			return n.steps.Fallback(ctx, input, execErr)
		},
		retry.Hooks{
			OnRetry: func(attempt int, wait time.Duration, err error) {
				logger.Debug(ctx, "retrying exec",
					"node", n.name,
					"attempt", attempt,
					"wait", wait,
					"error", err)
			},
			OnExhausted: func(attempts int, err error) {
				logger.Debug(ctx, "executing fallback",
					"node", n.name,
					"attempts", attempts,
					"error", err)
			},
		},
	)
	if err != nil {
		return nil, n.fail(ctx, PhaseExec, attempts, err)
	}
	return result, nil
}

func (n *node) fail(ctx context.Context, phase Phase, attempts int, err error) error {
	LoggerFrom(ctx).Error(ctx, "node failed",
		"node", n.name,
		"phase", phase,
		"attempts", attempts,
		"error", err)
	return &NodeError{Node: n.name, Phase: phase, Attempts: attempts, Err: err}
}

// Connect registers dst as the successor of src for action (DefaultAction
// when omitted) and returns dst.
func Connect(src, dst Node, action ...string) Node {
	a := DefaultAction
	if len(action) > 0 && action[0] != "" {
		a = action[0]
	}
	return src.Connect(a, dst)
}

// Chain connects nodes in order along their default edges and returns the
// first node.
func Chain(nodes ...Node) Node {
	if len(nodes) == 0 {
		return nil
	}
	for i := 0; i < len(nodes)-1; i++ {
		nodes[i].Connect(DefaultAction, nodes[i+1])
	}
	return nodes[0]
}
