package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/metrics"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/workspace"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	metrics    *metrics.Metrics
	workspace  *workspace.Workspace
	store      checkpoint.Store
	closeStore func() error
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, registry and
// metrics. With no modules given, the core modules are registered.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	if err := reg.RegisterModules(modules...); err != nil {
		return nil, fmt.Errorf("register modules: %w", err)
	}
	logger.Debug("All task modules registered.", "count", len(modules), "types", reg.Types())

	ws, err := openWorkspace(cfg.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	logger.Debug("Workspace ready.", "root", ws.Root)

	store, closeStore, err := openStore(ctx, cfg.CheckpointStore, ws)
	if err != nil {
		return nil, fmt.Errorf("open %s checkpoint store: %w", cfg.CheckpointStore, err)
	}
	logger.Debug("Checkpoint store ready.", "kind", cfg.CheckpointStore)

	return &App{
		outW:       outW,
		logger:     logger,
		config:     cfg,
		registry:   reg,
		metrics:    metrics.New(),
		workspace:  ws,
		store:      store,
		closeStore: closeStore,
	}, nil
}

func openWorkspace(root string) (*workspace.Workspace, error) {
	if root != "" {
		return workspace.New(root)
	}
	return workspace.FromEnv()
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Store returns the application's checkpoint store. This is primarily for testing.
func (a *App) Store() checkpoint.Store {
	return a.store
}

// Metrics returns the application's metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Close releases the checkpoint store and stops the health check server.
func (a *App) Close(ctx context.Context) error {
	a.closeHealthcheckServer(ctx)
	return a.closeStore()
}
