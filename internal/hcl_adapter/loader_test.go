package hcl_adapter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHCL = `
config {
  name          = "build-$${{parameters.env}}"
  use-snapshots = true
}

parameter "env" {
  default        = "dev"
  allowed-values = ["dev", "prod"]
  description    = "target environment"
}

parameter "threads" {
  default = 2
}

parameter "dir" {}

task "script" "hello" {
  inputs = {
    script = "#!/bin/sh\necho $${{parameters.env}}"
  }
}

task "for-each-file" "each" {
  inputs = {
    "glob-pattern"          = "./data/*.txt"
    "threads"               = 1.5
    "output-parameter-name" = "file"
    "tasks" = [
      {
        task   = "script"
        name   = "x $${{parameters.file}}"
        inputs = { script = "cat $file" }
      },
    ]
  }
}

task "script" "bare" {}
`

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func TestDecode(t *testing.T) {
	p, err := NewLoader().Decode(testContext(), []byte(sampleHCL), "sample.hcl")
	require.NoError(t, err)

	assert.Equal(t, "sample.hcl", p.Source)
	assert.Equal(t, "build-${{parameters.env}}", p.Settings.Name)
	assert.Equal(t, true, p.Settings.UseSnapshots)

	wantParams := []config.ParameterSpec{
		{Name: "env", Default: "dev", AllowedValues: []any{"dev", "prod"}, Description: "target environment"},
		{Name: "threads", Default: 2},
		{Name: "dir"},
	}
	if diff := cmp.Diff(wantParams, p.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, p.Tasks, 3)
	assert.Equal(t, "#!/bin/sh\necho ${{parameters.env}}", p.Tasks[0].Inputs["script"])
	assert.Equal(t, 1.5, p.Tasks[1].Inputs["threads"])
	assert.Equal(t, map[string]any{}, p.Tasks[2].Inputs)

	nested, err := config.TaskSpecsFromValue(p.Tasks[1].Inputs["tasks"])
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, config.TaskSpec{
		Type:   "script",
		Name:   "x ${{parameters.file}}",
		Inputs: map[string]any{"script": "cat $file"},
	}, nested[0])
}

func TestDecode_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{name: "missing config", src: `task "script" "a" {}`},
		{name: "missing config name", src: "config {\n  use-snapshots = true\n}\n"},
		{name: "unknown block", src: "config {\n  name = \"p\"\n}\nstep \"a\" \"b\" {}\n"},
		{name: "syntax error", src: `config {`},
		{name: "inputs not an object", src: "config {\n  name = \"p\"\n}\ntask \"script\" \"a\" {\n  inputs = [1]\n}\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().Decode(testContext(), []byte(tc.src), "bad.hcl")
			require.Error(t, err)
			assert.ErrorIs(t, err, pipeerr.ErrInvalidPipelineShape)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sampleHCL), 0o644))

	p, err := NewLoader().Load(testContext(), path)
	require.NoError(t, err)
	assert.Equal(t, path, p.Source)

	_, err = NewLoader().Load(testContext(), filepath.Join(dir, "missing.hcl"))
	assert.ErrorIs(t, err, pipeerr.ErrPathNotFound)
}
