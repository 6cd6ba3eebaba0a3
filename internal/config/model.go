package config

import (
	"github.com/specialistvlad/pipegrid/internal/parameters"
)

// Pipeline is the unified representation of one pipeline document.
type Pipeline struct {
	// Source is the path the document was loaded from.
	Source     string
	Settings   Settings
	Parameters []ParameterSpec
	Tasks      []TaskSpec
}

// Settings is the document's `config` section. Both fields are raw and may
// contain parameter tokens.
type Settings struct {
	Name         any
	UseSnapshots any
}

// ParameterSpec is one entry of the `parameters` list.
type ParameterSpec struct {
	Name          string
	Default       any
	AllowedValues []any
	Description   string
}

// TaskSpec is one entry of a task list. Fan-out types keep their nested
// task list under Inputs["tasks"]; see TaskSpecsFromValue.
type TaskSpec struct {
	Type   string
	Name   string
	Inputs map[string]any
}

// Definitions converts the parameter specs for parameters.Resolve.
func (p *Pipeline) Definitions() []parameters.Definition {
	defs := make([]parameters.Definition, 0, len(p.Parameters))
	for _, spec := range p.Parameters {
		defs = append(defs, parameters.Definition{
			Name:          spec.Name,
			Default:       spec.Default,
			AllowedValues: spec.AllowedValues,
			Description:   spec.Description,
		})
	}
	return defs
}
