package foreach

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/fsutil"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
)

// LineTask runs its nested tasks once per line of a file.
type LineTask struct{}

var lineInputs = append(schema.Schema{
	{Name: "file-path", Required: true, Coerce: schema.String},
	{Name: "trim-lines", Default: true, Coerce: schema.Bool},
	{Name: "skip-empty-lines", Default: true, Coerce: schema.Bool},
}, commonInputs...)

// Schema implements task.Task.
func (t *LineTask) Schema() schema.Schema { return lineInputs }

// NestedTasks implements task.Nester.
func (t *LineTask) NestedTasks(raw map[string]any) ([]config.TaskSpec, error) {
	return nestedTasks(raw)
}

// Run implements task.Task.
func (t *LineTask) Run(ctx context.Context, in schema.Inputs, rc *task.RunContext) error {
	path, err := fsutil.ExpandHome(in.String("file-path"))
	if err != nil {
		return fmt.Errorf("expand file path: %w", err)
	}
	lines, err := ReadLines(path, in.Bool("trim-lines"), in.Bool("skip-empty-lines"))
	if err != nil {
		return err
	}

	j, err := newJob(in, rc, lines)
	if err != nil {
		return err
	}
	return j.run(ctx)
}

// ReadLines returns the lines of the file at path, optionally trimmed and
// without empty ones. Both \n and \r\n line endings are accepted.
func ReadLines(path string, trim, skipEmpty bool) ([]string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, fmt.Errorf("%w: file '%s'", pipeerr.ErrPathNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil, nil
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trim {
			line = strings.TrimSpace(line)
		}
		if skipEmpty && line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

var _ task.Nester = (*LineTask)(nil)
