// Package template substitutes `${{parameters.NAME}}` tokens inside pipeline
// values. Substitution is purely textual and recurses through slices and maps.
package template

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	tokenPrefix = "${{parameters."
	tokenSuffix = "}}"
)

// Token returns the literal token that references the named parameter.
func Token(name string) string {
	return tokenPrefix + name + tokenSuffix
}

// Resolve returns a copy of value with every parameter token replaced.
//
// Strings get each `${{parameters.<name>}}` replaced by the string form of
// params[name]; names missing from params are left untouched. Slices are
// resolved element by element, maps have both keys and values resolved (on a
// key collision the last write wins). Every other value is returned as is.
// Resolve never fails and never mutates its input.
func Resolve(value any, params map[string]any) any {
	switch v := value.(type) {
	case string:
		return ResolveString(v, params)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, params)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = ResolveString(item, params)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[ResolveString(key, params)] = Resolve(item, params)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[ResolveString(key, params)] = ResolveString(item, params)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for key, item := range v {
			out[Resolve(key, params)] = Resolve(item, params)
		}
		return out
	default:
		return value
	}
}

// ResolveString replaces every known parameter token in s. The scan is a
// single left-to-right pass: text produced by a substitution is never scanned
// again, so the result does not depend on map iteration order.
func ResolveString(s string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(s, tokenPrefix) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for {
		start := strings.Index(s, tokenPrefix)
		if start < 0 {
			break
		}
		rest := s[start+len(tokenPrefix):]
		end := strings.Index(rest, tokenSuffix)
		if end < 0 {
			break
		}

		value, ok := params[rest[:end]]
		if !ok {
			// Unknown names stay literal; keep scanning after the prefix.
			b.WriteString(s[:start+len(tokenPrefix)])
			s = rest
			continue
		}
		b.WriteString(s[:start])
		b.WriteString(Stringify(value))
		s = rest[end+len(tokenSuffix):]
	}
	b.WriteString(s)
	return b.String()
}

// Stringify renders a parameter value the way it is spliced into strings and
// exported to subprocess environments.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return Stringify(float64(v))
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
