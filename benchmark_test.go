package pocketflow_test

import (
	"context"
	"testing"

	"github.com/agentstation/pocketflow"
)

func passthrough() pocketflow.Steps {
	return pocketflow.Steps{
		Exec: func(_ context.Context, prepResult any) (any, error) {
			return prepResult, nil
		},
	}
}

// Benchmark single node execution.
func BenchmarkSingleNodeExecution(b *testing.B) {
	node := pocketflow.NewNode("bench", passthrough())
	shared := pocketflow.NewShared(nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pocketflow.Run(ctx, node, shared)
	}
}

// Benchmark a ten node chain.
func BenchmarkFlowChain(b *testing.B) {
	nodes := make([]pocketflow.Node, 10)
	for i := range nodes {
		nodes[i] = pocketflow.NewNode("step", passthrough())
	}
	flow := pocketflow.NewFlow(pocketflow.Chain(nodes...))
	shared := pocketflow.NewShared(nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pocketflow.Run(ctx, flow, shared)
	}
}

// Benchmark parallel batch fan-out.
func BenchmarkParallelBatchNode(b *testing.B) {
	items := make([]any, 100)
	for i := range items {
		items[i] = i
	}
	steps := passthrough()
	steps.Prep = func(context.Context, *pocketflow.Shared) (any, error) {
		return items, nil
	}
	node := pocketflow.NewParallelBatchNode("fan-out", steps)
	shared := pocketflow.NewShared(nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pocketflow.Run(ctx, node, shared)
	}
}

// Benchmark action canonicalisation of structured values.
func BenchmarkToAction(b *testing.B) {
	v := map[string]any{"route": "search", "confidence": 0.9}
	for i := 0; i < b.N; i++ {
		_ = pocketflow.ToAction(v)
	}
}
