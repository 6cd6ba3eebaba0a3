package inmemorycheckpoint

import (
	"context"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/specialistvlad/pipegrid/internal/checkpoint/checkpointtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T) checkpoint.Store { return New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &checkpoint.Record{ID: "r1", PipelineName: "p"}
	_, err := s.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)
	rec.PipelineName = "mutated"

	got, err := s.FindLatest(ctx, "p")
	require.NoError(t, err)
	got.CompletedTasks = append(got.CompletedTasks, "x")

	ok, err := s.IsTaskCompleted(ctx, "r1", "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}
