package script

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Info describes a script file found on disk. Metadata comes from leading
// comment lines of the form "-- @name: value".
type Info struct {
	Name        string
	Path        string
	Category    string
	Description string
	Version     string

	script *Script
}

// Script returns the compiled script.
func (i *Info) Script() *Script {
	return i.script
}

// Manager discovers Lua scripts in a directory tree.
type Manager struct {
	dir     string
	scripts map[string]*Info
}

// NewManager creates a manager for dir.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:     dir,
		scripts: make(map[string]*Info),
	}
}

// Discover loads every .lua file under the manager's directory. A file that
// fails to compile aborts discovery.
func (m *Manager) Discover() error {
	return filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".lua") {
			return nil
		}

		info, err := LoadFile(path)
		if err != nil {
			return err
		}
		if prev, dup := m.scripts[info.Name]; dup {
			return fmt.Errorf("script %q defined in both %s and %s", info.Name, prev.Path, path)
		}
		m.scripts[info.Name] = info
		return nil
	})
}

// Get returns a discovered script by name.
func (m *Manager) Get(name string) (*Info, bool) {
	info, ok := m.scripts[name]
	return info, ok
}

// List returns all discovered scripts sorted by name.
func (m *Manager) List() []*Info {
	infos := make([]*Info, 0, len(m.scripts))
	for _, info := range m.scripts {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// LoadFile reads, parses and compiles a script file.
func LoadFile(path string) (*Info, error) {
	content, err := os.ReadFile(path) //nolint:gosec // Path is user-provided
	if err != nil {
		return nil, err
	}

	info := parseMetadata(string(content))
	info.Path = path
	if info.Name == "" {
		base := filepath.Base(path)
		info.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if info.Category == "" {
		info.Category = "script"
	}

	info.script, err = Compile(info.Name, string(content))
	if err != nil {
		return nil, err
	}
	return info, nil
}

func parseMetadata(content string) *Info {
	info := &Info{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			break
		}

		switch {
		case strings.HasPrefix(line, "-- @name:"):
			info.Name = strings.TrimSpace(strings.TrimPrefix(line, "-- @name:"))
		case strings.HasPrefix(line, "-- @category:"):
			info.Category = strings.TrimSpace(strings.TrimPrefix(line, "-- @category:"))
		case strings.HasPrefix(line, "-- @description:"):
			info.Description = strings.TrimSpace(strings.TrimPrefix(line, "-- @description:"))
		case strings.HasPrefix(line, "-- @version:"):
			info.Version = strings.TrimSpace(strings.TrimPrefix(line, "-- @version:"))
		}
	}
	return info
}
