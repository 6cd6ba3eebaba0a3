package config

import (
	"fmt"
	"slices"
	"sort"

	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/template"
)

var (
	topLevelKeys  = []string{"config", "parameters", "tasks"}
	settingsKeys  = []string{"name", "use-snapshots"}
	parameterKeys = []string{"name", "default", "allowed-values", "description"}
	taskKeys      = []string{"task", "name", "inputs"}
)

// FromMap builds a Pipeline from a generic decoded document, as produced by
// YAML or JSON decoders. Keys outside the known shape are rejected.
func FromMap(source string, doc map[string]any) (*Pipeline, error) {
	if err := checkKeys("document", doc, topLevelKeys); err != nil {
		return nil, err
	}

	settingsRaw, ok := asMap(doc["config"])
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid 'config' section", pipeerr.ErrInvalidPipelineShape)
	}
	if err := checkKeys("config", settingsRaw, settingsKeys); err != nil {
		return nil, err
	}

	p := &Pipeline{
		Source: source,
		Settings: Settings{
			Name:         settingsRaw["name"],
			UseSnapshots: settingsRaw["use-snapshots"],
		},
	}
	if err := p.Settings.Validate(); err != nil {
		return nil, err
	}

	if raw := doc["parameters"]; raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: 'parameters' must be a list", pipeerr.ErrInvalidPipelineShape)
		}
		for i, item := range list {
			spec, err := parameterFromValue(i, item)
			if err != nil {
				return nil, err
			}
			p.Parameters = append(p.Parameters, spec)
		}
	}

	tasks, err := TaskSpecsFromValue(doc["tasks"])
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return p, nil
}

// Validate checks that the settings carry a pipeline name.
func (s Settings) Validate() error {
	if s.Name == nil || template.Stringify(s.Name) == "" {
		return fmt.Errorf("%w: 'config.name' is required", pipeerr.ErrInvalidPipelineShape)
	}
	return nil
}

func parameterFromValue(index int, item any) (ParameterSpec, error) {
	raw, ok := asMap(item)
	if !ok {
		return ParameterSpec{}, fmt.Errorf("%w: parameter #%d must be a mapping", pipeerr.ErrInvalidPipelineShape, index)
	}
	if err := checkKeys(fmt.Sprintf("parameter #%d", index), raw, parameterKeys); err != nil {
		return ParameterSpec{}, err
	}
	name, _ := raw["name"].(string)
	if name == "" {
		return ParameterSpec{}, fmt.Errorf("%w: parameter #%d has no name", pipeerr.ErrInvalidPipelineShape, index)
	}
	spec := ParameterSpec{
		Name:        name,
		Default:     raw["default"],
		Description: template.Stringify(raw["description"]),
	}
	if allowed := raw["allowed-values"]; allowed != nil {
		list, ok := allowed.([]any)
		if !ok {
			return ParameterSpec{}, fmt.Errorf("%w: 'allowed-values' of parameter '%s' must be a list", pipeerr.ErrInvalidPipelineShape, name)
		}
		spec.AllowedValues = list
	}
	return spec, nil
}

// TaskSpecsFromValue decodes a generic task list, either the top-level
// `tasks` section or the nested `tasks` input of a fan-out task. A nil value
// is an empty list.
func TaskSpecsFromValue(value any) ([]TaskSpec, error) {
	if value == nil {
		return nil, nil
	}
	var list []any
	switch v := value.(type) {
	case []any:
		list = v
	case []map[string]any:
		for _, m := range v {
			list = append(list, m)
		}
	case []TaskSpec:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: task list must be a list, got %T", pipeerr.ErrInvalidPipelineShape, value)
	}

	specs := make([]TaskSpec, 0, len(list))
	for i, item := range list {
		raw, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: task #%d must be a mapping", pipeerr.ErrInvalidPipelineShape, i)
		}
		if err := checkKeys(fmt.Sprintf("task #%d", i), raw, taskKeys); err != nil {
			return nil, err
		}
		spec := TaskSpec{
			Type: template.Stringify(raw["task"]),
			Name: template.Stringify(raw["name"]),
		}
		if spec.Type == "" {
			return nil, fmt.Errorf("%w: task #%d has no 'task' type", pipeerr.ErrInvalidPipelineShape, i)
		}
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: task #%d ('%s') has no name", pipeerr.ErrInvalidPipelineShape, i, spec.Type)
		}
		if rawInputs := raw["inputs"]; rawInputs != nil {
			inputs, ok := asMap(rawInputs)
			if !ok {
				return nil, fmt.Errorf("%w: inputs of task '%s' must be a mapping", pipeerr.ErrInvalidPipelineShape, spec.Name)
			}
			spec.Inputs = inputs
		} else {
			spec.Inputs = map[string]any{}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[template.Stringify(key)] = item
		}
		return out, true
	}
	return nil, false
}

func checkKeys(where string, raw map[string]any, allowed []string) error {
	var unknown []string
	for key := range raw {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: unknown key(s) %v in %s", pipeerr.ErrInvalidPipelineShape, unknown, where)
}
