// Package task defines the capability contract every task type implements
// and the context a task runs in.
package task

import (
	"context"
	"io"
	"maps"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/metrics"
	"github.com/specialistvlad/pipegrid/internal/parameters"
	"github.com/specialistvlad/pipegrid/internal/runid"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/workspace"
)

// Task is one executable task type. Inputs are parsed against Schema before
// Run is called, so Run only sees validated values.
type Task interface {
	Schema() schema.Schema
	Run(ctx context.Context, in schema.Inputs, rc *RunContext) error
}

// Constructor creates a fresh Task instance for one task spec.
type Constructor func() Task

// SnapshotPolicy is implemented by tasks that decide per invocation whether
// they take part in checkpointing. Tasks without it follow the pipeline's
// use-snapshots setting.
type SnapshotPolicy interface {
	UsesSnapshots(in schema.Inputs, opts *runid.Options) bool
}

// Nester is implemented by task types that carry a nested task list in their
// inputs. The controller uses it to validate nested task types at load time.
type Nester interface {
	NestedTasks(raw map[string]any) ([]config.TaskSpec, error)
}

// Dispatcher runs one task spec through the controller's dispatch path, with
// extra parameters layered over the pipeline parameters.
type Dispatcher func(ctx context.Context, spec config.TaskSpec, extra map[string]any) error

// RunContext is what a task receives besides its inputs. It is shared
// read-only; tasks pass new extra parameters downward through Dispatch and
// never modify the parent's.
type RunContext struct {
	// TaskType and TaskName identify the running task; TaskName is already
	// resolved against the parameters.
	TaskType string
	TaskName string

	Options    *runid.Options
	Parameters *parameters.Values
	// Extra holds parameters injected by enclosing fan-out tasks.
	Extra map[string]any

	Dispatch  Dispatcher
	Stdout    io.Writer
	Stderr    io.Writer
	Workspace *workspace.Workspace
	Metrics   *metrics.Metrics
}

// Merged returns the pipeline parameters overlaid by the extra parameters.
// The result is a fresh map.
func (rc *RunContext) Merged() map[string]any {
	merged := rc.Parameters.Map()
	maps.Copy(merged, rc.Extra)
	return merged
}

// WithExtra returns a copy of the run's extra parameters with add layered
// on top, for passing to Dispatch.
func (rc *RunContext) WithExtra(add map[string]any) map[string]any {
	out := make(map[string]any, len(rc.Extra)+len(add))
	maps.Copy(out, rc.Extra)
	maps.Copy(out, add)
	return out
}
