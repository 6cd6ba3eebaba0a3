package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top-level structure of an HCL pipeline document.
type fileRoot struct {
	Config     *ConfigBlock      `hcl:"config,block"`
	Parameters []*ParameterBlock `hcl:"parameter,block"`
	Tasks      []*TaskBlock      `hcl:"task,block"`
}

// ConfigBlock is the `config { ... }` block.
type ConfigBlock struct {
	Name         hcl.Expression `hcl:"name"`
	UseSnapshots hcl.Expression `hcl:"use-snapshots,optional"`
}

// ParameterBlock is a `parameter "name" { ... }` block.
type ParameterBlock struct {
	Name          string         `hcl:"name,label"`
	Default       hcl.Expression `hcl:"default,optional"`
	AllowedValues hcl.Expression `hcl:"allowed-values,optional"`
	Description   string         `hcl:"description,optional"`
}

// TaskBlock is a `task "type" "name" { ... }` block.
type TaskBlock struct {
	Type   string         `hcl:"type,label"`
	Name   string         `hcl:"name,label"`
	Inputs hcl.Expression `hcl:"inputs,optional"`
}
