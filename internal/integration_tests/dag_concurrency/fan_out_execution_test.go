package integration_tests

import (
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fanOutYAML = `
config:
  name: fan-out
parameters:
  - name: threads
    default: 1
tasks:
  - task: for-each-line-of-file
    name: each id
    inputs:
      file-path: __ROOT__/ids.txt
      threads: ${{parameters.threads}}
      output-parameter-name: id
      tasks:
        - task: sleeper
          name: sleep ${{parameters.id}}
          inputs:
            id: ${{parameters.id}}
`

func overlaps(a, b testutil.ExecutionRecord) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// TestDagConcurrency_FanOutExecutionTest validates that fan-out items run
// concurrently when the task is given enough threads.
func TestDagConcurrency_FanOutExecutionTest(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	const itemCount = 4
	completionChan := make(chan string, itemCount)
	mockModule := testutil.NewMockSleeperModule(completionChan, 100*time.Millisecond)
	files := map[string]string{
		"main.yml": fanOutYAML,
		"ids.txt":  "A\nB\nC\nD\n",
	}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, "main.yml", testutil.Options{
		Overrides: map[string]any{"threads": "4"},
		Modules:   []registry.Module{mockModule},
	})
	require.NoError(t, result.Err, result.LogOutput)

	// --- Assert ---
	completed := make(map[string]struct{})
	for range itemCount {
		select {
		case id := <-completionChan:
			completed[id] = struct{}{}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for items. Got: %v", completed)
		}
	}

	records := mockModule.ExecutionTimes
	require.Len(t, records, itemCount)
	assert.True(t, overlaps(records["A"], records["B"]), "A and B should overlap")
	assert.True(t, overlaps(records["C"], records["D"]), "C and D should overlap")
}

// TestDagConcurrency_SingleThreadRunsSequentially validates that one thread
// processes items one at a time.
func TestDagConcurrency_SingleThreadRunsSequentially(t *testing.T) {
	t.Parallel()
	mockModule := testutil.NewMockSleeperModule(nil, 20*time.Millisecond)
	files := map[string]string{
		"main.yml": fanOutYAML,
		"ids.txt":  "A\nB\nC\n",
	}

	result := testutil.RunIntegrationTest(t, files, "main.yml", testutil.Options{
		Modules: []registry.Module{mockModule},
	})
	require.NoError(t, result.Err, result.LogOutput)

	assert.Equal(t, []string{"A", "B", "C"}, mockModule.IDs(), "a single worker takes items in order")
	records := mockModule.ExecutionTimes
	assert.False(t, overlaps(records["A"], records["B"]))
	assert.False(t, overlaps(records["B"], records["C"]))
}
