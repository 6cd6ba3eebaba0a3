// Package parameters resolves the pipeline's declared parameters into the
// ordered set of values that every task of a run can reference.
package parameters

import (
	"fmt"
	"maps"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/template"
)

// Definition is one entry of the pipeline's `parameters` list.
type Definition struct {
	Name          string
	Default       any
	AllowedValues []any
	Description   string
}

// Values is the ordered result of resolving a pipeline's definitions.
// It is built once per run and never mutated afterwards.
type Values struct {
	names  []string
	values map[string]any
}

// NewValues builds a Values from an ordered list of names and their values.
// Names missing from values are skipped.
func NewValues(names []string, values map[string]any) *Values {
	v := &Values{values: make(map[string]any, len(values))}
	for _, name := range names {
		val, ok := values[name]
		if !ok {
			continue
		}
		if _, seen := v.values[name]; !seen {
			v.names = append(v.names, name)
		}
		v.values[name] = val
	}
	return v
}

// Names returns the parameter names in declaration order.
func (v *Values) Names() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.names...)
}

// Get returns the resolved value of the named parameter.
func (v *Values) Get(name string) (any, bool) {
	if v == nil {
		return nil, false
	}
	val, ok := v.values[name]
	return val, ok
}

// Len returns the number of resolved parameters.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.names)
}

// Map returns a fresh copy of the values, safe for the caller to modify.
func (v *Values) Map() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return maps.Clone(v.values)
}

// Resolve turns definitions into values. Each definition's raw value (the
// override when one is given, else the default) is resolved against the
// parameters processed so far, so a parameter may reference parameters declared
// before it but not after it. Overrides for undeclared names, duplicate
// definitions, missing values and values outside allowed-values are errors.
func Resolve(defs []Definition, overrides map[string]any) (*Values, error) {
	declared := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if strings.TrimSpace(def.Name) == "" {
			return nil, pipeerr.Schemaf("parameter definition without a name")
		}
		if _, dup := declared[def.Name]; dup {
			return nil, fmt.Errorf("%w '%s'", pipeerr.ErrDuplicateParameter, def.Name)
		}
		declared[def.Name] = struct{}{}
	}
	for name := range overrides {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("%w: '%s'", pipeerr.ErrUnknownParameter, name)
		}
	}

	resolved := &Values{values: make(map[string]any, len(defs))}
	for _, def := range defs {
		raw := def.Default
		if override, ok := overrides[def.Name]; ok && override != nil {
			raw = override
		}

		value := template.Resolve(raw, resolved.values)
		if value == nil {
			return nil, fmt.Errorf("%w: '%s'", pipeerr.ErrRequiredParameter, def.Name)
		}
		if err := checkAllowed(def, value); err != nil {
			return nil, err
		}

		resolved.names = append(resolved.names, def.Name)
		resolved.values[def.Name] = value
	}
	return resolved, nil
}

// checkAllowed compares by string form so that a command-line override "1"
// matches an allowed value declared as the number 1.
func checkAllowed(def Definition, value any) error {
	if def.AllowedValues == nil {
		return nil
	}
	got := template.Stringify(value)
	for _, allowed := range def.AllowedValues {
		if template.Stringify(allowed) == got {
			return nil
		}
	}
	options := make([]string, 0, len(def.AllowedValues))
	for _, allowed := range def.AllowedValues {
		options = append(options, template.Stringify(allowed))
	}
	return fmt.Errorf("%w: parameter '%s' must be one of [%s], provided '%s'",
		pipeerr.ErrNotAllowed, def.Name, strings.Join(options, ", "), got)
}

// ParseOverrides turns `key=value` command-line pairs into override values.
// Values are kept as strings and may themselves contain '='; later pairs win.
func ParseOverrides(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, pipeerr.Validationf("invalid parameter '%s': expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
