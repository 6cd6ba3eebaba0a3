package schema

import (
	"fmt"
	"slices"
	"sort"

	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/template"
)

// CoerceFunc converts a raw (already templated) input value into the type the
// task expects. It returns an error when the value cannot be converted.
type CoerceFunc func(value any) (any, error)

// Input declares one accepted key of a task's `inputs` mapping.
type Input struct {
	Name        string
	Description string
	// Default is used when the key is absent or null.
	Default any
	// Literal disables `${{parameters.X}}` substitution for this key.
	Literal bool
	// AllowedValues, when non-nil, restricts the coerced value.
	AllowedValues []any
	// Coerce, when set, converts the value after templating.
	Coerce CoerceFunc
	// Required fails parsing when the final value is nil.
	Required bool
}

// Schema is the ordered list of inputs accepted by one task type.
type Schema []Input

// Names returns the declared input names in order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, in := range s {
		names = append(names, in.Name)
	}
	return names
}

// Parse validates raw against the schema and returns the parsed inputs.
//
// Parsing runs three passes, all before the task is allowed to run: unknown
// keys are rejected; every declared key gets its default, or the provided
// value templated (unless Literal) and coerced; required keys must end up
// non-nil.
func (s Schema) Parse(taskType string, raw map[string]any, params map[string]any) (Inputs, error) {
	if err := s.CheckKeys(taskType, raw); err != nil {
		return nil, err
	}

	parsed := make(Inputs, len(s))
	for _, in := range s {
		parsed[in.Name] = in.Default

		value, ok := raw[in.Name]
		if !ok || value == nil {
			continue
		}
		if !in.Literal {
			value = template.Resolve(value, params)
		}
		if in.Coerce != nil {
			coerced, err := in.Coerce(value)
			if err != nil {
				return nil, fmt.Errorf("input '%s' of task type '%s': %w", in.Name, taskType, err)
			}
			value = coerced
		}
		if err := checkAllowed(in, value); err != nil {
			return nil, fmt.Errorf("input '%s' of task type '%s': %w", in.Name, taskType, err)
		}
		parsed[in.Name] = value
	}

	for _, in := range s {
		if in.Required && parsed[in.Name] == nil {
			return nil, fmt.Errorf("%w: '%s' for task type '%s'", pipeerr.ErrRequiredInput, in.Name, taskType)
		}
	}
	return parsed, nil
}

// CheckKeys rejects keys of raw that the schema does not declare. It needs no
// parameter values, so it can run before anything executes.
func (s Schema) CheckKeys(taskType string, raw map[string]any) error {
	declared := make(map[string]struct{}, len(s))
	for _, in := range s {
		declared[in.Name] = struct{}{}
	}

	var unknown []string
	for key := range raw {
		if _, ok := declared[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: '%s' is not a valid input for task type '%s' (accepted: %v)",
		pipeerr.ErrUnknownInput, unknown[0], taskType, s.Names())
}

func checkAllowed(in Input, value any) error {
	if in.AllowedValues == nil {
		return nil
	}
	got := template.Stringify(value)
	if slices.ContainsFunc(in.AllowedValues, func(allowed any) bool {
		return template.Stringify(allowed) == got
	}) {
		return nil
	}
	return fmt.Errorf("%w: '%s' not in %v", pipeerr.ErrNotAllowed, got, in.AllowedValues)
}
