package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/agentstation/pocketflow"
	"github.com/agentstation/pocketflow/builtin"
	"github.com/agentstation/pocketflow/script"
	pfyaml "github.com/agentstation/pocketflow/yaml"
)

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// registry returns the built-in node types plus any scripts found in the
// scripts directory. A missing directory is not an error.
func (g *globals) registry() (*builtin.Registry, error) {
	r := builtin.Default()

	manager, err := g.scripts()
	if err != nil {
		return nil, err
	}
	if manager != nil {
		if err := r.RegisterScripts(manager); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (g *globals) scripts() (*script.Manager, error) {
	dir, err := expandPath(g.scriptsDir)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	manager := script.NewManager(dir)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("discover scripts: %w", err)
	}
	return manager, nil
}

func (g *globals) loader() (*pfyaml.Loader, error) {
	r, err := g.registry()
	if err != nil {
		return nil, err
	}
	loader := pfyaml.NewLoader()
	r.Install(loader)
	return loader, nil
}

// logger writes structured logs to w, at debug level when verbose.
func (g *globals) logger(w io.Writer) pocketflow.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return pocketflow.NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// render writes v in the selected output format. text is the fallback for
// anything without a dedicated text layout.
func render(w io.Writer, format string, v any) error {
	switch format {
	case yamlFormat:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, oj.JSON(v, &ojg.Options{Indent: 2, Sort: true, UseTags: true}))
		return err
	}
}

// inline renders v on one line: strings as is, everything else as JSON.
func inline(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return oj.JSON(v, &ojg.Options{Sort: true})
}
