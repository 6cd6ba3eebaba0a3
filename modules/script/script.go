package script

import (
	"context"
	"errors"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/runid"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
	"github.com/specialistvlad/pipegrid/internal/template"
)

// Interpreter runs scripts that carry no shebang line.
const Interpreter = "/bin/sh"

// Task runs one script.
type Task struct{}

var inputs = schema.Schema{
	{Name: "script", Literal: true, Required: true, Coerce: schema.String,
		Description: "Script source. Never templated; use environment variables to reach parameters."},
	{Name: "arguments", Default: []string{}, Coerce: schema.StringList},
	{Name: "environment-variables", Default: map[string]string{}, Coerce: schema.StringMap},
	{Name: "show-output", Default: true, Coerce: schema.Bool},
	{Name: "ignore-script-errors", Default: false, Coerce: schema.Bool},
	{Name: "use-snapshots", Coerce: schema.Bool,
		Description: "Unset follows the pipeline; set is combined with the pipeline setting."},
}

// Schema implements task.Task.
func (t *Task) Schema() schema.Schema { return inputs }

// UsesSnapshots implements task.SnapshotPolicy. A script cannot turn
// snapshots on when the pipeline has them off.
func (t *Task) UsesSnapshots(in schema.Inputs, opts *runid.Options) bool {
	if v := in.OptionalBool("use-snapshots"); v != nil {
		return *v && opts.UseSnapshots
	}
	return opts.UseSnapshots
}

// Run implements task.Task.
func (t *Task) Run(ctx context.Context, in schema.Inputs, rc *task.RunContext) error {
	logger := ctxlog.FromContext(ctx)

	dir := os.TempDir()
	if rc.Workspace != nil {
		dir = rc.Workspace.ScriptsDir()
	}
	path, err := writeScript(dir, in.String("script"))
	if err != nil {
		return pipeerr.Runtimef("write script: %v", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove script file.", "path", path, "error", err)
		}
	}()

	cmd := command(ctx, path, in.String("script"), in.Strings("arguments"))
	var runFields map[string]string
	if rc.Options != nil {
		runFields = rc.Options.Env()
	}
	scriptVars := in.StringMap("environment-variables")
	if shadowed := Shadowed(scriptVars, runFields, rc.Extra); len(shadowed) > 0 {
		logger.Warn("⚠️ Environment variables overridden by run parameters.", "keys", shadowed)
	}
	cmd.Env = Environ(os.Environ(), scriptVars, runFields, rc.Extra)
	cmd.Stdout, cmd.Stderr = io.Discard, io.Discard
	if in.Bool("show-output") {
		cmd.Stdout, cmd.Stderr = writerOr(rc.Stdout), writerOr(rc.Stderr)
	}

	logger.Debug("Starting script.", "path", path, "args", cmd.Args[1:])
	err = cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return pipeerr.Runtimef("start script: %v", err)
	}
	if in.Bool("ignore-script-errors") {
		logger.Warn("⚠️ Script failed, ignoring.", "exit_code", exitErr.ExitCode())
		return nil
	}
	return &pipeerr.ScriptExitError{Task: rc.TaskName, ExitCode: exitErr.ExitCode()}
}

func writeScript(dir, body string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "script-"+uuid.NewString())
	if err := os.WriteFile(path, []byte(body), 0o700); err != nil {
		return "", err
	}
	// WriteFile is subject to the umask.
	if err := os.Chmod(path, 0o700); err != nil {
		return "", err
	}
	return path, nil
}

func command(ctx context.Context, path, body string, args []string) *exec.Cmd {
	if strings.HasPrefix(body, "#!") {
		return exec.CommandContext(ctx, path, args...)
	}
	return exec.CommandContext(ctx, Interpreter, append([]string{path}, args...)...)
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// Environ layers the given environments over base, a list of KEY=VALUE
// entries. Later layers win on key collision. The result is sorted by key.
func Environ(base []string, scriptVars map[string]string, runFields map[string]string, extra map[string]any) []string {
	env := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	maps.Copy(env, scriptVars)
	maps.Copy(env, runFields)
	for k, v := range extra {
		env[k] = template.Stringify(v)
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Shadowed returns the sorted keys of scriptVars that a run field or an extra
// parameter replaces in Environ.
func Shadowed(scriptVars map[string]string, runFields map[string]string, extra map[string]any) []string {
	var keys []string
	for k := range scriptVars {
		_, inRun := runFields[k]
		_, inExtra := extra[k]
		if inRun || inExtra {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

var _ task.SnapshotPolicy = (*Task)(nil)
