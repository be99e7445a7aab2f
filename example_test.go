package pocketflow_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/agentstation/pocketflow"
)

// ExampleNewNode demonstrates the prep, exec and post lifecycle.
func ExampleNewNode() {
	uppercase := pocketflow.NewNode("uppercase", pocketflow.Steps{
		Prep: func(_ context.Context, shared *pocketflow.Shared) (any, error) {
			text, _ := shared.Get("text")
			return text, nil
		},
		Exec: func(_ context.Context, text any) (any, error) {
			return strings.ToUpper(text.(string)), nil
		},
		Post: func(_ context.Context, shared *pocketflow.Shared, _, result any) (any, error) {
			shared.Set("text", result)
			return nil, nil
		},
	})

	shared := pocketflow.NewShared(map[string]any{"text": "hello world"})
	if _, err := pocketflow.Run(context.Background(), uppercase, shared); err != nil {
		log.Fatal(err)
	}

	text, _ := shared.Get("text")
	fmt.Println(text)
	// Output: HELLO WORLD
}

// ExampleNewFlow demonstrates branching on the action a node returns.
func ExampleNewFlow() {
	say := func(name string) pocketflow.Node {
		return pocketflow.NewNode(name, pocketflow.Steps{
			Post: func(context.Context, *pocketflow.Shared, any, any) (any, error) {
				fmt.Println(name)
				return nil, nil
			},
		})
	}

	check := pocketflow.NewNode("check", pocketflow.Steps{
		Prep: func(_ context.Context, shared *pocketflow.Shared) (any, error) {
			age, _ := shared.Get("age")
			return age, nil
		},
		Post: func(_ context.Context, _ *pocketflow.Shared, age, _ any) (any, error) {
			if age.(int) >= 18 {
				return "adult", nil
			}
			return "minor", nil
		},
	})
	check.Connect("adult", say("welcome"))
	check.Connect("minor", say("sorry"))

	flow := pocketflow.NewFlow(check)
	for _, age := range []int{30, 12} {
		shared := pocketflow.NewShared(map[string]any{"age": age})
		if _, err := pocketflow.Run(context.Background(), flow, shared); err != nil {
			log.Fatal(err)
		}
	}
	// Output:
	// welcome
	// sorry
}

// ExampleNewBatchFlow demonstrates running a graph once per param set.
func ExampleNewBatchFlow() {
	greet := pocketflow.NewNode("greet", pocketflow.Steps{
		Exec: func(ctx context.Context, _ any) (any, error) {
			return fmt.Sprintf("hello, %s", pocketflow.ParamsFrom(ctx)["name"]), nil
		},
		Post: func(_ context.Context, _ *pocketflow.Shared, _, greeting any) (any, error) {
			fmt.Println(greeting)
			return nil, nil
		},
	})

	flow := pocketflow.NewBatchFlow(greet, pocketflow.WithFlowSteps(pocketflow.Steps{
		Prep: func(context.Context, *pocketflow.Shared) (any, error) {
			return []pocketflow.Params{{"name": "ada"}, {"name": "alan"}}, nil
		},
	}))

	if _, err := pocketflow.Run(context.Background(), flow, nil); err != nil {
		log.Fatal(err)
	}
	// Output:
	// hello, ada
	// hello, alan
}
