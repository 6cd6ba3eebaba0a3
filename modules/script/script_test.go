package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/parameters"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/runid"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
	"github.com/specialistvlad/pipegrid/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ws     *workspace.Workspace
	stdout *bytes.Buffer
	logs   *bytes.Buffer
	rc     *task.RunContext
}

func newHarness(t *testing.T, extra map[string]any) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("scripts need a POSIX shell")
	}
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	params, err := parameters.Resolve([]parameters.Definition{{Name: "x", Default: "1"}}, nil)
	require.NoError(t, err)

	h := &harness{ws: ws, stdout: &bytes.Buffer{}, logs: &bytes.Buffer{}}
	h.rc = &task.RunContext{
		TaskType:   TypeID,
		TaskName:   "test script",
		Parameters: params,
		Extra:      extra,
		Options: &runid.Options{
			PipelineName: "demo",
			RunID:        "1748772000.000000-demo",
			UseSnapshots: true,
			StartedAt:    time.Unix(1748772000, 0),
		},
		Stdout:    h.stdout,
		Stderr:    &bytes.Buffer{},
		Workspace: ws,
	}
	return h
}

func (h *harness) run(t *testing.T, raw map[string]any) error {
	t.Helper()
	tk := &Task{}
	in, err := tk.Schema().Parse(TypeID, raw, h.rc.Merged())
	require.NoError(t, err)
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(h.logs, nil)))
	return tk.Run(ctx, in, h.rc)
}

func TestRun_ExitCodes(t *testing.T) {
	testCases := []struct {
		name       string
		script     string
		ignore     bool
		expectCode int
	}{
		{name: "success", script: "#!/bin/sh\nexit 0\n"},
		{name: "failure", script: "#!/bin/sh\nexit 2\n", expectCode: 2},
		{name: "ignored failure", script: "#!/bin/sh\nexit 2\n", ignore: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			err := h.run(t, map[string]any{"script": tc.script, "ignore-script-errors": tc.ignore})
			if tc.expectCode == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pipeerr.IsRuntime(err))
			var exitErr *pipeerr.ScriptExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, tc.expectCode, exitErr.ExitCode)
			assert.Equal(t, "test script", exitErr.Task)
		})
	}
}

func TestRun_EnvironmentAndArguments(t *testing.T) {
	h := newHarness(t, map[string]any{"file": "a.txt", "name": "from-extra"})
	err := h.run(t, map[string]any{
		"script":                "#!/bin/sh\necho \"$1 $2|$file|$name|$GREETING\"\n",
		"arguments":             []any{"one", 2},
		"environment-variables": map[string]any{"GREETING": "hi ${{parameters.x}}"},
	})
	require.NoError(t, err)
	assert.Equal(t, "one 2|a.txt|from-extra|hi 1\n", h.stdout.String())
}

// TestHelperEnv is not a real test. TestRun_RunFieldsReachTheProcess runs the
// test binary as a script interpreter so that it prints its environment
// without a shell in between; some shells drop names containing '-'.
func TestHelperEnv(t *testing.T) {
	if os.Getenv("PIPEGRID_HELPER_ENV") != "1" {
		t.Skip("only runs as a script interpreter")
	}
	for _, kv := range os.Environ() {
		fmt.Println(kv)
	}
	os.Exit(0)
}

func TestRun_RunFieldsReachTheProcess(t *testing.T) {
	bin, err := filepath.Abs(os.Args[0])
	require.NoError(t, err)
	h := newHarness(t, map[string]any{"file": "a.txt"})

	err = h.run(t, map[string]any{
		"script":                "#!" + bin + " -test.run=^TestHelperEnv$\n",
		"environment-variables": map[string]any{"PIPEGRID_HELPER_ENV": "1"},
	})
	require.NoError(t, err)

	env := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(h.stdout.String()), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			env[k] = v
		}
	}
	assert.Equal(t, "demo", env["name"])
	assert.Equal(t, "1748772000.000000-demo", env["pipeline-id"])
	assert.Equal(t, "true", env["use-snapshot"])
	assert.Equal(t, "1748772000.000000", env["start-time"])
	assert.Equal(t, "false", env["is-completed"])
	assert.Equal(t, "a.txt", env["file"])
}

func TestRun_WarnsWhenRunFieldsShadowVariables(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.run(t, map[string]any{
		"script":                "echo \"$GREETING\"",
		"environment-variables": map[string]any{"name": "mine", "GREETING": "hi"},
	}))
	assert.Equal(t, "hi\n", h.stdout.String())
	assert.Contains(t, h.logs.String(), "Environment variables overridden by run parameters.")
	assert.Contains(t, h.logs.String(), "keys=[name]")
}

func TestRun_ScriptIsNotTemplated(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.run(t, map[string]any{"script": "echo '${{parameters.x}}'"}))
	assert.Equal(t, "${{parameters.x}}\n", h.stdout.String())
}

func TestRun_HideOutput(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.run(t, map[string]any{"script": "echo hidden", "show-output": "no"}))
	assert.Empty(t, h.stdout.String())
}

func TestRun_RemovesScriptFile(t *testing.T) {
	h := newHarness(t, nil)
	require.Error(t, h.run(t, map[string]any{"script": "exit 3"}))
	entries, err := os.ReadDir(h.ws.ScriptsDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUsesSnapshots(t *testing.T) {
	yes, no := true, false
	testCases := []struct {
		name     string
		pipeline bool
		task     *bool
		want     bool
	}{
		{name: "unset inherits on", pipeline: true, want: true},
		{name: "unset inherits off", pipeline: false, want: false},
		{name: "task off", pipeline: true, task: &no, want: false},
		{name: "task cannot force on", pipeline: false, task: &yes, want: false},
		{name: "both on", pipeline: true, task: &yes, want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := schema.Inputs{"use-snapshots": nil}
			if tc.task != nil {
				in["use-snapshots"] = *tc.task
			}
			got := (&Task{}).UsesSnapshots(in, &runid.Options{UseSnapshots: tc.pipeline})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEnviron_Precedence(t *testing.T) {
	env := Environ(
		[]string{"A=base", "B=base", "C=base", "D=base"},
		map[string]string{"B": "script", "C": "script", "D": "script"},
		map[string]string{"C": "run", "D": "run"},
		map[string]any{"D": 4},
	)
	assert.Equal(t, []string{"A=base", "B=script", "C=run", "D=4"}, env)
}

func TestShadowed(t *testing.T) {
	got := Shadowed(
		map[string]string{"name": "a", "item": "b", "KEEP": "c"},
		map[string]string{"name": "run"},
		map[string]any{"item": "x"},
	)
	assert.Equal(t, []string{"item", "name"}, got)
	assert.Empty(t, Shadowed(map[string]string{"KEEP": "c"}, map[string]string{"name": "run"}, nil))
}
