package schema

// Inputs holds the parsed values of a task's inputs, keyed by input name.
// Accessors return zero values for missing or mistyped entries; Parse has
// already enforced types through each input's CoerceFunc.
type Inputs map[string]any

// String returns the named input as a string.
func (in Inputs) String(name string) string {
	s, _ := in[name].(string)
	return s
}

// Int returns the named input as an int.
func (in Inputs) Int(name string) int {
	i, _ := in[name].(int)
	return i
}

// Bool returns the named input as a bool.
func (in Inputs) Bool(name string) bool {
	b, _ := ToBool(in[name])
	return b
}

// OptionalBool returns nil when the input was left unset.
func (in Inputs) OptionalBool(name string) *bool {
	if in[name] == nil {
		return nil
	}
	b := in.Bool(name)
	return &b
}

// List returns the named input as a list.
func (in Inputs) List(name string) []any {
	l, _ := in[name].([]any)
	return l
}

// Strings returns the named input as a list of strings.
func (in Inputs) Strings(name string) []string {
	switch v := in[name].(type) {
	case []string:
		return v
	case []any:
		out, _ := StringList(v)
		return out.([]string)
	}
	return nil
}

// StringMap returns the named input as a string map.
func (in Inputs) StringMap(name string) map[string]string {
	switch v := in[name].(type) {
	case map[string]string:
		return v
	case map[string]any, map[any]any:
		out, _ := StringMap(v)
		return out.(map[string]string)
	}
	return nil
}
