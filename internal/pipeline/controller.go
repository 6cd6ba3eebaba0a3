package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/metrics"
	"github.com/specialistvlad/pipegrid/internal/parameters"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/runid"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
	"github.com/specialistvlad/pipegrid/internal/template"
	"github.com/specialistvlad/pipegrid/internal/workspace"
)

// Deps are the collaborators of a Controller.
type Deps struct {
	Registry *registry.Registry
	Store    checkpoint.Store

	// ContinueFromLastRun resumes the latest unfinished run of the pipeline.
	ContinueFromLastRun bool
	ResumePolicy        ResumePolicy

	Stdout    io.Writer
	Stderr    io.Writer
	Workspace *workspace.Workspace
	Metrics   *metrics.Metrics
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Controller runs one pipeline document.
type Controller struct {
	doc    *config.Pipeline
	deps   Deps
	params *parameters.Values
	opts   *runid.Options

	mu    sync.Mutex
	state State
}

// New validates doc, resolves its parameters with overrides applied, and
// binds the run identity.
func New(ctx context.Context, doc *config.Pipeline, overrides map[string]any, deps Deps) (*Controller, error) {
	if doc == nil {
		return nil, errors.New("pipeline: nil document")
	}
	if deps.Registry == nil || deps.Store == nil {
		return nil, errors.New("pipeline: registry and checkpoint store are required")
	}
	if deps.Stdout == nil {
		deps.Stdout = io.Discard
	}
	if deps.Stderr == nil {
		deps.Stderr = io.Discard
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := ctxlog.FromContext(ctx)
	c := &Controller{doc: doc, deps: deps, state: StateLoaded}

	if err := c.validateTasks(doc.Tasks); err != nil {
		return nil, err
	}

	params, err := parameters.Resolve(doc.Definitions(), overrides)
	if err != nil {
		return nil, fmt.Errorf("resolve parameters: %w", err)
	}
	c.params = params
	c.state = StateParametersResolved
	logger.Debug("Parameters resolved.", "count", params.Len(), "names", params.Names())

	name := template.Stringify(template.Resolve(doc.Settings.Name, params.Map()))
	if name == "" {
		return nil, pipeerr.Schemaf("pipeline name resolved to an empty string")
	}
	useSnapshots, err := schema.ToBool(template.Resolve(doc.Settings.UseSnapshots, params.Map()))
	if err != nil {
		return nil, fmt.Errorf("config 'use-snapshots': %w", err)
	}

	opts, err := runid.Resolve(ctx, deps.Store, runid.Request{
		PipelineName:        name,
		UseSnapshots:        useSnapshots,
		ContinueFromLastRun: deps.ContinueFromLastRun,
		StartedAt:           deps.Now(),
	})
	if err != nil {
		return nil, err
	}
	c.opts = opts
	c.state = StateRunIdentityBound
	logger.Info("📋 Pipeline loaded.",
		"pipeline", opts.PipelineName,
		"run_id", opts.RunID,
		"resumed", opts.Resumed,
		"use_snapshots", opts.UseSnapshots,
		"tasks", len(doc.Tasks),
	)
	return c, nil
}

// validateTasks checks every referenced task type and its input keys,
// descending into nested task lists.
func (c *Controller) validateTasks(specs []config.TaskSpec) error {
	for _, spec := range specs {
		t, err := c.deps.Registry.New(spec.Type)
		if err != nil {
			return fmt.Errorf("task '%s': %w", spec.Name, err)
		}
		if err := t.Schema().CheckKeys(spec.Type, spec.Inputs); err != nil {
			return fmt.Errorf("task '%s': %w", spec.Name, err)
		}
		nester, ok := t.(task.Nester)
		if !ok {
			continue
		}
		nested, err := nester.NestedTasks(spec.Inputs)
		if err != nil {
			return fmt.Errorf("task '%s': %w", spec.Name, err)
		}
		if err := c.validateTasks(nested); err != nil {
			return fmt.Errorf("task '%s': %w", spec.Name, err)
		}
	}
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Options returns the bound run identity.
func (c *Controller) Options() *runid.Options { return c.opts }

// Parameters returns the resolved parameters.
func (c *Controller) Parameters() *parameters.Values { return c.params }

// Run executes the tasks in order. The first failure aborts the run and
// leaves the checkpoint incomplete so a later launch can resume it.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunIdentityBound {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("pipeline: cannot run from state %s", st)
	}
	c.state = StateRunning
	c.mu.Unlock()

	ctx, logger := ctxlog.With(ctx, "pipeline", c.opts.PipelineName, "run_id", c.opts.RunID)
	logger.Info("🚀 Starting pipeline run.")
	start := c.deps.Now()

	for _, spec := range c.doc.Tasks {
		if err := c.dispatch(ctx, spec, nil); err != nil {
			c.setState(StateFailed)
			c.deps.Metrics.ObserveRun(metrics.OutcomeFailure)
			logger.Error("❌ Pipeline run failed.", "error", err)
			return err
		}
	}

	if err := c.opts.MarkCompleted(ctx, c.deps.Store); err != nil {
		c.setState(StateFailed)
		c.deps.Metrics.ObserveRun(metrics.OutcomeFailure)
		return err
	}
	c.setState(StateCompleted)
	c.deps.Metrics.ObserveRun(metrics.OutcomeSuccess)
	logger.Info("🏁 Pipeline run finished.", "duration", c.deps.Now().Sub(start))
	return nil
}
