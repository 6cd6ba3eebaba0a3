package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveString(t *testing.T) {
	params := map[string]any{
		"env":   "prod",
		"count": 3,
		"ratio": 1.5,
		"whole": float64(2),
		"flag":  true,
		"empty": nil,
	}

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no tokens", input: "plain text", expected: "plain text"},
		{name: "single token", input: "deploy-${{parameters.env}}", expected: "deploy-prod"},
		{name: "repeated token", input: "${{parameters.env}}/${{parameters.env}}", expected: "prod/prod"},
		{name: "int value", input: "n=${{parameters.count}}", expected: "n=3"},
		{name: "float value", input: "${{parameters.ratio}}", expected: "1.5"},
		{name: "integral float", input: "${{parameters.whole}}", expected: "2"},
		{name: "bool value", input: "${{parameters.flag}}", expected: "true"},
		{name: "nil value", input: "[${{parameters.empty}}]", expected: "[]"},
		{name: "unknown name stays literal", input: "${{parameters.missing}}-${{parameters.env}}", expected: "${{parameters.missing}}-prod"},
		{name: "unterminated token", input: "${{parameters.env", expected: "${{parameters.env"},
		{name: "different namespace untouched", input: "${{ env.HOME }}", expected: "${{ env.HOME }}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolveString(tc.input, params))
		})
	}
}

func TestResolveString_SubstitutedTextIsNotRescanned(t *testing.T) {
	params := map[string]any{
		"a": "${{parameters.b}}",
		"b": "B",
	}
	assert.Equal(t, "${{parameters.b}}", ResolveString("${{parameters.a}}", params))
}

func TestResolve_Recursive(t *testing.T) {
	params := map[string]any{"name": "svc", "port": 8080}
	input := map[string]any{
		"${{parameters.name}}-host": "host-${{parameters.name}}",
		"args":                      []any{"--port", "${{parameters.port}}", 42, nil},
		"nested": map[string]any{
			"enabled": true,
			"list":    []string{"${{parameters.name}}"},
		},
	}

	expected := map[string]any{
		"svc-host": "host-svc",
		"args":     []any{"--port", "8080", 42, nil},
		"nested": map[string]any{
			"enabled": true,
			"list":    []string{"svc"},
		},
	}

	got := Resolve(input, params)
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	params := map[string]any{"x": "1"}
	list := []any{"${{parameters.x}}"}
	m := map[string]any{"k": "${{parameters.x}}", "l": list}

	_ = Resolve(m, params)

	assert.Equal(t, "${{parameters.x}}", m["k"])
	assert.Equal(t, "${{parameters.x}}", list[0])
}

func TestResolve_PassThrough(t *testing.T) {
	params := map[string]any{"x": "1"}
	for _, v := range []any{nil, 3, 2.5, true, int64(9)} {
		assert.Equal(t, v, Resolve(v, params))
	}
}

func TestResolve_KeyCollisionKeepsOneEntry(t *testing.T) {
	params := map[string]any{"a": "k"}
	got := Resolve(map[string]any{"${{parameters.a}}": 1, "k": 1}, params)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Len(t, m, 1)
	assert.Equal(t, 1, m["k"])
}

func TestResolve_Idempotent(t *testing.T) {
	params := map[string]any{"a": "x", "b": 2}
	inputs := []string{
		"",
		"no tokens at all",
		"${{parameters.a}}-${{parameters.b}}",
		"${{parameters.unknown}} ${{parameters.a}}",
	}
	for _, s := range inputs {
		once := ResolveString(s, params)
		assert.Equal(t, once, ResolveString(once, params), "input %q", s)
	}
}
