// This file translates the decoded HCL blocks into the format-agnostic
// pipeline model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
)

func (l *Loader) translate(ctx context.Context, root *fileRoot) (*config.Pipeline, error) {
	if root.Config == nil {
		return nil, fmt.Errorf("%w: missing 'config' block", pipeerr.ErrInvalidPipelineShape)
	}

	p := &config.Pipeline{}
	var err error
	if p.Settings.Name, err = evalExpr(ctx, root.Config.Name, "name"); err != nil {
		return nil, err
	}
	if p.Settings.UseSnapshots, err = evalExpr(ctx, root.Config.UseSnapshots, "use-snapshots"); err != nil {
		return nil, err
	}
	if err := p.Settings.Validate(); err != nil {
		return nil, err
	}

	for _, block := range root.Parameters {
		spec, err := translateParameter(ctx, block)
		if err != nil {
			return nil, err
		}
		p.Parameters = append(p.Parameters, spec)
	}

	for _, block := range root.Tasks {
		spec, err := translateTask(ctx, block)
		if err != nil {
			return nil, err
		}
		p.Tasks = append(p.Tasks, spec)
	}
	return p, nil
}

func translateParameter(ctx context.Context, b *ParameterBlock) (config.ParameterSpec, error) {
	spec := config.ParameterSpec{Name: b.Name, Description: b.Description}

	def, err := evalExpr(ctx, b.Default, "default")
	if err != nil {
		return spec, fmt.Errorf("parameter '%s': %w", b.Name, err)
	}
	spec.Default = def

	allowed, err := evalExpr(ctx, b.AllowedValues, "allowed-values")
	if err != nil {
		return spec, fmt.Errorf("parameter '%s': %w", b.Name, err)
	}
	if allowed != nil {
		list, ok := allowed.([]any)
		if !ok {
			return spec, fmt.Errorf("%w: 'allowed-values' of parameter '%s' must be a list", pipeerr.ErrInvalidPipelineShape, b.Name)
		}
		spec.AllowedValues = list
	}
	return spec, nil
}

func translateTask(ctx context.Context, b *TaskBlock) (config.TaskSpec, error) {
	logger := ctxlog.FromContext(ctx).With("task_type", b.Type, "task_name", b.Name)
	logger.Debug("Translating HCL task to internal config model.")

	spec := config.TaskSpec{Type: b.Type, Name: b.Name, Inputs: map[string]any{}}
	raw, err := evalExpr(ctx, b.Inputs, "inputs")
	if err != nil {
		return spec, fmt.Errorf("task '%s': %w", b.Name, err)
	}
	if raw == nil {
		return spec, nil
	}
	inputs, ok := raw.(map[string]any)
	if !ok {
		return spec, fmt.Errorf("%w: inputs of task '%s' must be an object", pipeerr.ErrInvalidPipelineShape, b.Name)
	}
	spec.Inputs = inputs
	return spec, nil
}
