/*
Package pocketflow is a small workflow engine: a directed graph of nodes,
each running a prep, exec and post lifecycle, connected by labeled edges
that the post phase picks at run time. Branches, loops and agent-style
control flow fall out of that one rule.

Nodes:

	summarize := pocketflow.NewNode("summarize", pocketflow.Steps{
		Prep: func(ctx context.Context, shared *pocketflow.Shared) (any, error) {
			text, _ := shared.Get("text")
			return text, nil
		},
		Exec: func(ctx context.Context, text any) (any, error) {
			return callLLM(ctx, text)
		},
		Fallback: func(ctx context.Context, text any, err error) (any, error) {
			return "summary unavailable", nil
		},
		Post: func(ctx context.Context, shared *pocketflow.Shared, _, summary any) (any, error) {
			shared.Set("summary", summary)
			return nil, nil // default edge
		},
	}, pocketflow.WithRetry(3, 100*time.Millisecond))

Exec is retried with exponential backoff; after the last failure Fallback
gets one chance to recover. Prep and Post are never retried.

Flows:

	decide.Connect("search", search)
	decide.Connect("answer", answer)
	search.Connect(pocketflow.DefaultAction, decide)

	flow := pocketflow.NewFlow(decide)
	action, err := pocketflow.Run(ctx, flow, pocketflow.NewShared(nil))

A Flow is itself a Node, so flows nest. An action with no matching edge
falls back to the "default" edge; with neither the traversal ends.

Batches:

NewBatchNode and NewParallelBatchNode run Exec once per item returned by
Prep. NewBatchFlow and NewParallelBatchFlow run the whole graph once per
param set returned by Prep, merging each set into the params that nodes
read through ParamsFrom.

Async:

The NewAsync* constructors build nodes and flows that run through RunAsync
and observe ctx while backing off. Async flows may contain sync nodes.

	task := pocketflow.RunAsync(ctx, flow, shared)
	action, err := task.Wait()
*/
package pocketflow
