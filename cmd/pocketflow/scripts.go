package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	goyaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentstation/pocketflow/script"
	pfyaml "github.com/agentstation/pocketflow/yaml"
)

type scriptInfo struct {
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Path        string `json:"path" yaml:"path"`
}

func newScriptsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List Lua scripts available as node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := g.scripts()
			if err != nil {
				return err
			}

			var infos []scriptInfo
			if manager != nil {
				for _, info := range manager.List() {
					infos = append(infos, scriptInfo{
						Name:        info.Name,
						Category:    info.Category,
						Description: info.Description,
						Version:     info.Version,
						Path:        info.Path,
					})
				}
			}

			out := cmd.OutOrStdout()
			if g.output != textFormat {
				return render(out, g.output, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintf(out, "No scripts found in %s\n", g.scriptsDir)
				fmt.Fprintln(out, "\nCreate a script with metadata like:")
				fmt.Fprintln(out, "-- @name: my-script")
				fmt.Fprintln(out, "-- @category: data")
				fmt.Fprintln(out, "-- @description: My custom script")
				fmt.Fprintln(out, "")
				fmt.Fprintln(out, "function exec(input, params)")
				fmt.Fprintln(out, "    return input")
				fmt.Fprintln(out, "end")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, s := range infos {
				desc := s.Description
				if desc == "" {
					desc = "(no description)"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\n", s.Name, s.Category, desc)
			}
			return w.Flush()
		},
	}

	var input string
	runCmd := &cobra.Command{
		Use:   "run <file.lua>",
		Short: "Run a Lua script once against an input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := expandPath(args[0])
			if err != nil {
				return err
			}
			info, err := script.LoadFile(path)
			if err != nil {
				return err
			}

			var in any
			if input != "" {
				if err := goyaml.Unmarshal([]byte(input), &in); err != nil {
					return fmt.Errorf("invalid input: %w", err)
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			result, err := info.Script().Exec(ctx, pfyaml.Normalize(in))
			if err != nil {
				return err
			}
			format := g.output
			if format == textFormat {
				format = jsonFormat
			}
			return render(cmd.OutOrStdout(), format, result)
		},
	}
	runCmd.Flags().StringVar(&input, "input", "", "Script input as YAML or JSON")
	cmd.AddCommand(runCmd)

	return cmd
}

