package integration_tests

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoreExecution_ResumeSkipsCompletedItems validates that a relaunch of
// a failed run, with the skip-completed policy, only reruns what did not
// finish.
func TestCoreExecution_ResumeSkipsCompletedItems(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	pipelineYAML := `
config:
  name: resumable
  use-snapshots: true
tasks:
  - task: for-each-line-of-file
    name: each id
    inputs:
      file-path: __ROOT__/ids.txt
      output-parameter-name: id
      tasks:
        - task: sleeper
          name: sleep ${{parameters.id}}
          inputs:
            id: ${{parameters.id}}
`
	files := map[string]string{"main.yml": pipelineYAML, "ids.txt": "A\nB\nC\n"}
	workspace := t.TempDir()

	first := testutil.NewMockSleeperModule(nil, time.Millisecond)
	first.FailIDs["B"] = true
	failed := testutil.RunIntegrationTest(t, files, "main.yml", testutil.Options{
		WorkspaceRoot: workspace,
		SkipCompleted: true,
		Modules:       []registry.Module{first},
	})
	require.Error(t, failed.Err)
	assert.Equal(t, []string{"A", "B", "C"}, first.IDs())

	// --- Act ---
	second := testutil.NewMockSleeperModule(nil, time.Millisecond)
	resumed := testutil.RunIntegrationTest(t, files, "main.yml", testutil.Options{
		WorkspaceRoot: workspace,
		SkipCompleted: true,
		Modules:       []registry.Module{second},
	})

	// --- Assert ---
	require.NoError(t, resumed.Err, resumed.LogOutput)
	assert.Equal(t, []string{"B"}, second.IDs(), "A and C were recorded by the failed run")

	rec, err := resumed.App.Store().FindLatest(context.Background(), "resumable")
	require.NoError(t, err)
	assert.True(t, rec.IsCompleted)
}
