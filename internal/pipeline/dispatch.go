package pipeline

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/metrics"
	"github.com/specialistvlad/pipegrid/internal/task"
	"github.com/specialistvlad/pipegrid/internal/template"
)

// dispatch runs one task spec: resolve its name, construct it, parse its
// inputs, consult the checkpoint, run it and record its completion. It is
// safe for concurrent use by fan-out workers.
func (c *Controller) dispatch(ctx context.Context, spec config.TaskSpec, extra map[string]any) error {
	rc := &task.RunContext{
		TaskType:   spec.Type,
		Options:    c.opts,
		Parameters: c.params,
		Extra:      extra,
		Dispatch:   c.dispatch,
		Stdout:     c.deps.Stdout,
		Stderr:     c.deps.Stderr,
		Workspace:  c.deps.Workspace,
		Metrics:    c.deps.Metrics,
	}
	merged := rc.Merged()
	rc.TaskName = template.ResolveString(spec.Name, merged)

	ctx, logger := ctxlog.With(ctx, "task", rc.TaskName, "task_type", spec.Type)

	t, err := c.deps.Registry.New(spec.Type)
	if err != nil {
		return fmt.Errorf("task '%s': %w", rc.TaskName, err)
	}
	in, err := t.Schema().Parse(spec.Type, spec.Inputs, merged)
	if err != nil {
		return fmt.Errorf("task '%s': %w", rc.TaskName, err)
	}

	snapshots := c.opts.UseSnapshots
	if p, ok := t.(task.SnapshotPolicy); ok {
		snapshots = p.UsesSnapshots(in, c.opts)
	}

	var hash string
	if snapshots {
		if hash, err = TaskHash(spec.Type, rc.TaskName, in, extra); err != nil {
			return err
		}
		if c.deps.ResumePolicy == SkipCompleted {
			done, err := c.deps.Store.IsTaskCompleted(ctx, c.opts.RunID, hash)
			if err != nil {
				return fmt.Errorf("task '%s': check checkpoint: %w", rc.TaskName, err)
			}
			if done {
				logger.Info("⏭️ Task already completed in this run, skipping.", "hash", hash)
				c.deps.Metrics.ObserveTask(spec.Type, metrics.OutcomeSkipped, 0)
				return nil
			}
		}
	}

	logger.Info("▶️ Running task.")
	start := c.deps.Now()
	err = t.Run(ctx, in, rc)
	elapsed := c.deps.Now().Sub(start)
	c.deps.Metrics.ObserveTask(spec.Type, metrics.Outcome(err), elapsed)
	if err != nil {
		return fmt.Errorf("task '%s': %w", rc.TaskName, err)
	}

	if snapshots {
		if err := c.deps.Store.AppendCompletedTask(ctx, c.opts.RunID, hash); err != nil {
			return fmt.Errorf("task '%s': record completion: %w", rc.TaskName, err)
		}
	}
	logger.Info("✅ Task finished.", "duration", elapsed)
	return nil
}
