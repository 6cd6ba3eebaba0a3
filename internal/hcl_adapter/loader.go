// Package hcl_adapter loads pipeline documents written in HCL.
//
// Parameter tokens collide with HCL's own template syntax, so documents
// write them escaped: "$${{parameters.env}}" evaluates to the literal
// "${{parameters.env}}" that the controller later resolves.
package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the HCL document at path and translates it into the
// format-agnostic model.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", pipeerr.ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("failed to read pipeline %s: %w", path, err)
	}

	p, err := l.Decode(ctx, src, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "parameters", len(p.Parameters), "tasks", len(p.Tasks))
	return p, nil
}

// Decode parses HCL source. filename is used for diagnostics and recorded as
// the pipeline's Source.
func (l *Loader) Decode(ctx context.Context, src []byte, filename string) (*config.Pipeline, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse HCL file %s: %v", pipeerr.ErrInvalidPipelineShape, filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode HCL file %s: %v", pipeerr.ErrInvalidPipelineShape, filename, diags)
	}

	p, err := l.translate(ctx, &root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	p.Source = filename
	return p, nil
}
