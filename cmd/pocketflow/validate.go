package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/pocketflow"
	pfyaml "github.com/agentstation/pocketflow/yaml"
)

type validateResult struct {
	Name        string   `json:"name" yaml:"name"`
	Valid       bool     `json:"valid" yaml:"valid"`
	Mode        string   `json:"mode" yaml:"mode"`
	Nodes       []string `json:"nodes" yaml:"nodes"`
	Unreachable []string `json:"unreachable,omitempty" yaml:"unreachable,omitempty"`
}

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Check a workflow definition without running it",
		Long: `Parse a workflow, check it against the definition schema, build every
node and report the nodes reachable from the start node.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := expandPath(args[0])
			if err != nil {
				return fmt.Errorf("expand path: %w", err)
			}
			def, err := pfyaml.NewParser().ParseFile(path)
			if err != nil {
				return err
			}
			loader, err := g.loader()
			if err != nil {
				return err
			}
			flow, err := loader.LoadDefinition(def)
			if err != nil {
				return fmt.Errorf("load workflow: %w", err)
			}

			result := validateResult{Name: def.Name, Valid: true, Mode: flowMode(def)}
			reached := make(map[string]bool)
			err = pocketflow.Walk(flow.StartNode(), func(n pocketflow.Node) error {
				result.Nodes = append(result.Nodes, n.Name())
				reached[n.Name()] = true
				return nil
			})
			if err != nil {
				return err
			}
			for _, n := range def.Nodes {
				if !reached[n.Name] {
					result.Unreachable = append(result.Unreachable, n.Name)
				}
			}

			out := cmd.OutOrStdout()
			if g.output != textFormat {
				return render(out, g.output, result)
			}
			fmt.Fprintf(out, "Workflow %s is valid (%s)\n", result.Name, result.Mode)
			fmt.Fprintf(out, "Reachable nodes: %d of %d\n", len(result.Nodes), len(def.Nodes))
			for _, name := range result.Unreachable {
				fmt.Fprintf(out, "  warning: %s is unreachable from %s\n", name, def.Start)
			}
			return nil
		},
	}
}

func flowMode(def *pfyaml.GraphDefinition) string {
	mode := def.Mode
	if mode == "" {
		mode = pfyaml.ModeSync
	}
	if def.Batch != "" && def.Batch != pfyaml.BatchNone {
		mode += ", " + def.Batch + " batch"
	}
	return mode
}
