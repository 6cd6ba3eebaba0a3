package foreach

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/fsutil"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
)

// FileTask runs its nested tasks once per file matching a glob pattern.
type FileTask struct{}

var fileInputs = append(schema.Schema{
	{Name: "glob-pattern", Required: true, Coerce: schema.String,
		Description: "Pattern of the files to process. A leading ~ is expanded."},
	{Name: "include-subdirectories", Default: false, Coerce: schema.Bool,
		Description: "Let ** match across directories."},
}, commonInputs...)

// Schema implements task.Task.
func (t *FileTask) Schema() schema.Schema { return fileInputs }

// NestedTasks implements task.Nester.
func (t *FileTask) NestedTasks(raw map[string]any) ([]config.TaskSpec, error) {
	return nestedTasks(raw)
}

// Run implements task.Task.
func (t *FileTask) Run(ctx context.Context, in schema.Inputs, rc *task.RunContext) error {
	pattern, err := fsutil.ExpandHome(in.String("glob-pattern"))
	if err != nil {
		return fmt.Errorf("expand glob pattern: %w", err)
	}
	files, err := fsutil.Glob(pattern, in.Bool("include-subdirectories"))
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Files matched.", "pattern", pattern, "count", len(files))

	j, err := newJob(in, rc, files)
	if err != nil {
		return err
	}
	return j.run(ctx)
}

var _ task.Nester = (*FileTask)(nil)
