// Package workspace lays out the per-user working directory: temporary
// scripts and file-based checkpoints live under it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/pipegrid/internal/env"
	"github.com/specialistvlad/pipegrid/internal/fsutil"
)

// DefaultRoot is used when PIPEGRID_WORKSPACE is unset.
const DefaultRoot = "~/.pipegrid"

// Workspace is a bootstrapped directory tree.
type Workspace struct {
	Root string
}

// FromEnv bootstraps the workspace named by PIPEGRID_WORKSPACE.
func FromEnv() (*Workspace, error) {
	return New(env.String(env.Prefix+"WORKSPACE", DefaultRoot))
}

// New creates root and its subdirectories if needed.
func New(root string) (*Workspace, error) {
	expanded, err := fsutil.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	ws := &Workspace{Root: expanded}
	for _, dir := range []string{ws.Root, ws.ScriptsDir(), ws.CheckpointsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace directory %s: %w", dir, err)
		}
	}
	return ws, nil
}

// ScriptsDir holds script files while they run.
func (w *Workspace) ScriptsDir() string { return filepath.Join(w.Root, "scripts") }

// CheckpointsDir holds the file checkpoint store.
func (w *Workspace) CheckpointsDir() string { return filepath.Join(w.Root, "checkpoints") }
