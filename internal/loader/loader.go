// Package loader selects the pipeline loader matching a document's file
// extension.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/hcl_adapter"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/yaml_adapter"
)

// ForPath returns the loader for the document at path.
func ForPath(path string) (config.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return yaml_adapter.NewLoader(), nil
	case ".hcl":
		return hcl_adapter.NewLoader(), nil
	default:
		return nil, pipeerr.Schemaf("unsupported pipeline file extension '%s' (expected .yml, .yaml or .hcl)", filepath.Ext(path))
	}
}

// Load checks that path exists and loads it with the matching loader.
func Load(ctx context.Context, path string) (*config.Pipeline, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: pipeline file %s", pipeerr.ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("failed to access pipeline file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, pipeerr.Schemaf("pipeline path %s is a directory", path)
	}

	l, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, path)
}
