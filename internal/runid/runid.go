// Package runid decides which run a pipeline execution belongs to: a fresh
// one, or the most recent unfinished run of the same pipeline.
package runid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
)

// Request carries the settings that select a run identity.
type Request struct {
	PipelineName string
	UseSnapshots bool
	// ContinueFromLastRun enables resuming the latest unfinished run.
	ContinueFromLastRun bool
	StartedAt           time.Time
}

// Options is the run identity shared, read-only, by every task of a run.
// Only MarkCompleted mutates it.
type Options struct {
	PipelineName string
	RunID        string
	UseSnapshots bool
	StartedAt    time.Time
	// Resumed is true when RunID was taken from an unfinished record.
	Resumed bool

	mu        sync.Mutex
	completed bool
}

// NewRunID formats a fresh run id: unix seconds with six decimals, a dash,
// and the pipeline name.
func NewRunID(t time.Time, pipelineName string) string {
	secs := float64(t.UnixMicro()) / 1e6
	return strconv.FormatFloat(secs, 'f', 6, 64) + "-" + pipelineName
}

// Resolve picks the run id and makes sure its checkpoint record exists.
//
// The lookup and the create are two separate store calls: two launches of the
// same pipeline racing here may both resume, or both mint, a run.
func Resolve(ctx context.Context, store checkpoint.Store, req Request) (*Options, error) {
	logger := ctxlog.FromContext(ctx)

	opts := &Options{
		PipelineName: req.PipelineName,
		RunID:        NewRunID(req.StartedAt, req.PipelineName),
		UseSnapshots: req.UseSnapshots,
		StartedAt:    req.StartedAt,
	}

	if req.ContinueFromLastRun {
		latest, err := store.FindLatest(ctx, req.PipelineName)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			logger.Debug("No previous run found.", "pipeline", req.PipelineName)
		case err != nil:
			return nil, fmt.Errorf("find latest run of '%s': %w", req.PipelineName, err)
		case latest.IsCompleted:
			logger.Debug("Previous run completed, starting a new one.", "previous_run_id", latest.ID)
		default:
			opts.RunID = latest.ID
			opts.Resumed = true
			logger.Info("🔁 Resuming unfinished run.", "run_id", latest.ID)
		}
	}

	created, err := store.CreateIfAbsent(ctx, &checkpoint.Record{
		ID:             opts.RunID,
		PipelineName:   opts.PipelineName,
		CreatedAt:      req.StartedAt.UTC(),
		CompletedTasks: []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("create checkpoint for run '%s': %w", opts.RunID, err)
	}
	logger.Debug("Run identity bound.", "run_id", opts.RunID, "record_created", created)
	return opts, nil
}

// Completed reports whether the run finished successfully.
func (o *Options) Completed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed
}

// MarkCompleted flips the completed flag once and persists it. Later calls
// are no-ops.
func (o *Options) MarkCompleted(ctx context.Context, store checkpoint.Store) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.completed {
		return nil
	}
	if err := store.MarkCompleted(ctx, o.RunID); err != nil {
		return fmt.Errorf("mark run '%s' completed: %w", o.RunID, err)
	}
	o.completed = true
	return nil
}

// Env returns the run fields exported to scripts, all stringified.
func (o *Options) Env() map[string]string {
	return map[string]string{
		"name":         o.PipelineName,
		"pipeline-id":  o.RunID,
		"use-snapshot": strconv.FormatBool(o.UseSnapshots),
		"start-time":   strconv.FormatFloat(float64(o.StartedAt.UnixMicro())/1e6, 'f', 6, 64),
		"is-completed": strconv.FormatBool(o.Completed()),
	}
}
