package app

import (
	"context"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/loader"
	"github.com/specialistvlad/pipegrid/internal/pipeline"
)

// Run loads the configured pipeline document and executes it.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	doc, err := loader.Load(ctx, a.config.PipelinePath)
	if err != nil {
		return err
	}
	a.logger.Debug("Pipeline document loaded.", "source", doc.Source, "tasks", len(doc.Tasks))

	policy := pipeline.RerunAll
	if a.config.SkipCompleted {
		policy = pipeline.SkipCompleted
	}
	ctrl, err := pipeline.New(ctx, doc, a.config.Overrides, pipeline.Deps{
		Registry:            a.registry,
		Store:               a.store,
		ContinueFromLastRun: a.config.ContinueFromLastRun,
		ResumePolicy:        policy,
		Stdout:              a.outW,
		Stderr:              a.outW,
		Workspace:           a.workspace,
		Metrics:             a.metrics,
	})
	if err != nil {
		return err
	}

	if err := ctrl.Run(ctx); err != nil {
		return err
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
