package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Example: `  # Show version
  pocketflow version

  # Show version in YAML format
  pocketflow version --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if g.output != textFormat {
				return render(out, g.output, map[string]string{
					"version":   version,
					"commit":    commit,
					"buildDate": buildDate,
					"goVersion": goVersion,
				})
			}

			fmt.Fprintf(out, "pocketflow version %s\n", version)
			if version != "dev" {
				fmt.Fprintf(out, "  commit:     %s\n", commit)
				fmt.Fprintf(out, "  built:      %s\n", buildDate)
				fmt.Fprintf(out, "  go version: %s\n", goVersion)
			}
			return nil
		},
	}
}
