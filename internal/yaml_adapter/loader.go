// Package yaml_adapter loads pipeline documents written in YAML.
package yaml_adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and decodes the YAML document at path.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path", path)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", pipeerr.ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("failed to open pipeline %s: %w", path, err)
	}
	defer f.Close()

	p, err := Decode(f, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("YAML loading complete.", "parameters", len(p.Parameters), "tasks", len(p.Tasks))
	return p, nil
}

// Decode parses one YAML document from r. source is recorded on the result
// and used in error messages.
func Decode(r io.Reader, source string) (*config.Pipeline, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", pipeerr.ErrInvalidPipelineShape, source)
		}
		return nil, fmt.Errorf("%w: failed to parse YAML file %s: %v", pipeerr.ErrInvalidPipelineShape, source, err)
	}
	p, err := config.FromMap(source, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return p, nil
}
