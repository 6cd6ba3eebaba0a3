// Package testutil provides a harness for running whole pipelines in
// integration tests, plus mock task modules.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/app"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/stretchr/testify/require"
)

// RootToken is replaced with the test's temporary directory in every file
// the harness writes, so documents can reference sibling data files.
const RootToken = "__ROOT__"

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Root      string
	LogOutput string
	Err       error
	App       *app.App
}

// Options tweak the app configuration used by the harness.
type Options struct {
	Overrides     map[string]any
	SkipCompleted bool
	// WorkspaceRoot lets several runs share checkpoints through the file store.
	WorkspaceRoot string
	// Modules are registered next to the core modules.
	Modules []registry.Module
}

// RunIntegrationTest writes files into a temporary directory and runs the
// pipeline document named entry with the core modules plus opts.Modules.
func RunIntegrationTest(t *testing.T, files map[string]string, entry string, opts Options) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, entry, opts)
}

// RunIntegrationTestWithContext is RunIntegrationTest with a caller-provided
// context.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, entry string, opts Options) *HarnessResult {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(content, RootToken, root)), 0o644))
	}

	cfg := &app.Config{
		PipelinePath:        filepath.Join(root, entry),
		Overrides:           opts.Overrides,
		ContinueFromLastRun: true,
		SkipCompleted:       opts.SkipCompleted,
		CheckpointStore:     app.StoreMemory,
		WorkspaceRoot:       opts.WorkspaceRoot,
		LogFormat:           "text",
	}
	if cfg.Overrides == nil {
		cfg.Overrides = map[string]any{}
	}
	if opts.WorkspaceRoot != "" {
		cfg.CheckpointStore = app.StoreFile
	}

	testApp, logs := app.SetupAppTest(t, cfg, append(app.CoreModules(), opts.Modules...)...)
	runErr := testApp.Run(ctx)

	return &HarnessResult{
		Root:      root,
		LogOutput: logs.String(),
		Err:       runErr,
		App:       testApp,
	}
}
