package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentstation/pocketflow"
	pfyaml "github.com/agentstation/pocketflow/yaml"
)

// runOptions holds configuration for the run command.
type runOptions struct {
	sharedFile string
	set        []string
	dryRun     bool
	timeout    time.Duration
}

// runResult is what the run command prints.
type runResult struct {
	Flow     string         `json:"flow" yaml:"flow"`
	Action   any            `json:"action" yaml:"action"`
	Duration string         `json:"duration" yaml:"duration"`
	Shared   map[string]any `json:"shared" yaml:"shared"`
}

func newRunCmd(g *globals) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <file.yaml>",
		Short: "Execute a workflow from a YAML file",
		Example: `  pocketflow run agent.yaml
  pocketflow run agent.yaml --shared state.yaml --set question="What is Go?"
  pocketflow run agent.yaml --dry-run
  pocketflow run agent.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.sharedFile, "shared", "", "YAML or JSON file with the initial shared state")
	cmd.Flags().StringArrayVar(&opts.set, "set", nil, "Set a shared key (key=value, value parsed as YAML)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate workflow without executing")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	return cmd
}

func runWorkflow(cmd *cobra.Command, g *globals, opts *runOptions, file string) error {
	path, err := expandPath(file)
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

	if opts.dryRun {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s is valid (dry run)\n", def.Name)
		return err
	}

	initial, err := opts.initialShared()
	if err != nil {
		return err
	}
	shared := pocketflow.NewShared(initial)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = pocketflow.WithLogger(ctx, g.logger(cmd.ErrOrStderr()))
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	start := time.Now()
	var action any
	if flow.Async() {
		action, err = pocketflow.RunAsync(ctx, flow, shared).Wait()
	} else {
		action, err = pocketflow.Run(ctx, flow, shared)
	}
	if err != nil {
		return fmt.Errorf("workflow execution failed: %w", err)
	}

	result := runResult{
		Flow:     def.Name,
		Action:   action,
		Duration: time.Since(start).String(),
		Shared:   shared.Snapshot(),
	}

	out := cmd.OutOrStdout()
	if g.output != textFormat {
		return render(out, g.output, result)
	}

	fmt.Fprintf(out, "Workflow %s completed in %s\n", result.Flow, result.Duration)
	if action != nil {
		fmt.Fprintf(out, "Action: %s\n", pocketflow.ToAction(action))
	}
	fmt.Fprintln(out, "Shared:")
	for _, key := range shared.Keys() {
		v, _ := shared.Get(key)
		fmt.Fprintf(out, "  %s: %s\n", key, inline(v))
	}
	return nil
}

// initialShared merges the --shared file with --set pairs, the latter
// winning.
func (o *runOptions) initialShared() (map[string]any, error) {
	initial := map[string]any{}

	if o.sharedFile != "" {
		path, err := expandPath(o.sharedFile)
		if err != nil {
			return nil, fmt.Errorf("expand path: %w", err)
		}
		data, err := os.ReadFile(path) //nolint:gosec // User-provided state file
		if err != nil {
			return nil, fmt.Errorf("read shared state: %w", err)
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse shared state: %w", err)
		}
		m, ok := pfyaml.Normalize(doc).(map[string]any)
		if !ok && doc != nil {
			return nil, fmt.Errorf("shared state must be a mapping")
		}
		for k, v := range m {
			initial[k] = v
		}
	}

	for _, pair := range o.set {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		initial[key] = pfyaml.Normalize(v)
	}
	return initial, nil
}
