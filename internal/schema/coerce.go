package schema

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/template"
)

var outputParameterNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

func invalidType(want string, value any) error {
	return fmt.Errorf("%w: expected %s, got %T (%v)", pipeerr.ErrInvalidInputType, want, value, value)
}

// Int accepts integers, integral floats and numeric strings.
func Int(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, invalidType("integer", value)
		}
		return int(v), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, invalidType("integer", value)
		}
		return i, nil
	default:
		return nil, invalidType("integer", value)
	}
}

// ToBool converts yes/true/t/y/1 and no/false/f/n/0 (case-insensitive) as
// well as real booleans. A nil value is false.
func ToBool(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true", "t", "y", "1":
			return true, nil
		case "no", "false", "f", "n", "0":
			return false, nil
		}
	}
	return false, invalidType("boolean", value)
}

// Bool is the CoerceFunc form of ToBool.
func Bool(value any) (any, error) {
	return ToBool(value)
}

// String accepts any scalar and renders it as a string.
func String(value any) (any, error) {
	switch value.(type) {
	case []any, []string, map[string]any, map[any]any, map[string]string:
		return nil, invalidType("string", value)
	}
	return template.Stringify(value), nil
}

// List accepts a sequence and returns it as []any.
func List(value any) (any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return nil, invalidType("list", value)
	}
}

// StringList accepts a sequence and stringifies every element.
func StringList(value any) (any, error) {
	list, err := List(value)
	if err != nil {
		return nil, err
	}
	items := list.([]any)
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = template.Stringify(item)
	}
	return out, nil
}

// StringMap accepts a mapping and stringifies keys and values.
func StringMap(value any) (any, error) {
	switch v := value.(type) {
	case map[string]string:
		return v, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[key] = template.Stringify(item)
		}
		return out, nil
	case map[any]any:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[template.Stringify(key)] = template.Stringify(item)
		}
		return out, nil
	default:
		return nil, invalidType("mapping", value)
	}
}

// OutputParameterName validates the name a fan-out task injects into its
// sub-tasks: non-empty, letters, digits, '_' and '-' only.
func OutputParameterName(value any) (any, error) {
	name := template.Stringify(value)
	if name == "" {
		return nil, fmt.Errorf("%w: name is empty", pipeerr.ErrInvalidOutputName)
	}
	if !outputParameterNameRegex.MatchString(name) {
		return nil, fmt.Errorf("%w: '%s' contains invalid characters", pipeerr.ErrInvalidOutputName, name)
	}
	return name, nil
}
