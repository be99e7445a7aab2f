package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Output format constants.
const (
	jsonFormat = "json"
	yamlFormat = "yaml"
	textFormat = "text"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	verbose    bool
	output     string
	scriptsDir string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "pocketflow",
		Short: "A minimalist workflow graph engine",
		Long: `pocketflow runs workflow graphs defined in YAML.

Nodes run a prep, exec and post lifecycle and pick the next edge by the
action they return, so branches, loops and agent-style control flow are
all expressed as plain graphs.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch g.output {
			case textFormat, jsonFormat, yamlFormat:
				return nil
			default:
				return fmt.Errorf("unknown output format %q", g.output)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&g.output, "output", "o", textFormat, "Output format (text, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&g.scriptsDir, "scripts", defaultScriptsDir(), "Directory of Lua scripts to expose as node types")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(g),
		newValidateCmd(g),
		newNodesCmd(g),
		newScriptsCmd(g),
		newVersionCmd(g),
	)
	return rootCmd
}

func defaultScriptsDir() string {
	if dir := os.Getenv("POCKETFLOW_SCRIPTS"); dir != "" {
		return dir
	}
	return "~/.pocketflow/scripts"
}
