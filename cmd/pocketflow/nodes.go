package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	goyaml "github.com/goccy/go-yaml"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentstation/pocketflow/builtin"
)

func newNodesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List available node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.registry()
			if err != nil {
				return err
			}
			nodes := r.All()

			// Sort by category then type
			sort.SliceStable(nodes, func(i, j int) bool {
				return nodes[i].Category < nodes[j].Category
			})

			out := cmd.OutOrStdout()
			if g.output != textFormat {
				return render(out, g.output, nodes)
			}
			return outputTable(out, nodes)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info <type>",
		Short: "Show detailed info about a node type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.registry()
			if err != nil {
				return err
			}
			builder, ok := r.Get(args[0])
			if !ok {
				return fmt.Errorf("node type '%s' not found", args[0])
			}
			meta := builder.Metadata()

			out := cmd.OutOrStdout()
			if g.output != textFormat {
				return render(out, g.output, meta)
			}
			return outputInfo(out, meta)
		},
	})

	return cmd
}

// outputTable outputs nodes grouped by category.
func outputTable(w io.Writer, nodes []builtin.NodeMetadata) error {
	categories := make(map[string][]builtin.NodeMetadata)
	for _, node := range nodes {
		categories[node.Category] = append(categories[node.Category], node)
	}

	categoryNames := make([]string, 0, len(categories))
	for cat := range categories {
		categoryNames = append(categoryNames, cat)
	}
	sort.Strings(categoryNames)

	for _, cat := range categoryNames {
		fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(cat[:1])+cat[1:])
		fmt.Fprintln(w, strings.Repeat("-", len(cat)+1))

		for _, node := range categories[cat] {
			fmt.Fprintf(w, "  %-20s %s\n", node.Type, node.Description)
		}
	}

	fmt.Fprintf(w, "\nTotal: %d node types\n", len(nodes))
	fmt.Fprintln(w, "\nUse 'pocketflow nodes info <type>' for detailed information about a specific node.")
	return nil
}

func outputInfo(w io.Writer, node builtin.NodeMetadata) error {
	fmt.Fprintf(w, "Node Type: %s\n", node.Type)
	fmt.Fprintf(w, "Category: %s\n", node.Category)
	fmt.Fprintf(w, "Description: %s\n", node.Description)
	if node.Since != "" {
		fmt.Fprintf(w, "Since: %s\n", node.Since)
	}
	fmt.Fprintln(w)

	if len(node.ConfigSchema) > 0 {
		fmt.Fprintln(w, "Configuration:")
		fmt.Fprintf(w, "  %s\n\n", oj.JSON(node.ConfigSchema, &ojg.Options{Indent: 2, Sort: true}))
	}

	if len(node.Examples) > 0 {
		fmt.Fprintln(w, "Examples:")
		for i, example := range node.Examples {
			fmt.Fprintf(w, "  %d. %s\n", i+1, example.Name)
			if example.Description != "" {
				fmt.Fprintf(w, "     %s\n", example.Description)
			}
			if len(example.Config) > 0 {
				configYAML, err := goyaml.Marshal(example.Config)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "     Config:")
				for _, line := range strings.Split(string(configYAML), "\n") {
					if line != "" {
						fmt.Fprintf(w, "       %s\n", line)
					}
				}
			}
		}
	}
	return nil
}
