// Package checkpointtest provides a behavioural test suite shared by every
// checkpoint.Store implementation.
package checkpointtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store created by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) checkpoint.Store) {
	t.Helper()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("FindLatestEmpty", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindLatest(context.Background(), "nothing")
		assert.True(t, errors.Is(err, checkpoint.ErrNotFound), "got %v", err)
	})

	t.Run("CreateIfAbsentIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateIfAbsent(ctx, &checkpoint.Record{ID: "r1", PipelineName: "p", CreatedAt: base})
		require.NoError(t, err)
		assert.True(t, created)

		require.NoError(t, s.AppendCompletedTask(ctx, "r1", "h1"))

		created, err = s.CreateIfAbsent(ctx, &checkpoint.Record{ID: "r1", PipelineName: "p", CreatedAt: base.Add(time.Hour)})
		require.NoError(t, err)
		assert.False(t, created)

		rec, err := s.FindLatest(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "r1", rec.ID)
		assert.True(t, rec.CreatedAt.Equal(base), "second create must not overwrite")
		assert.Equal(t, []string{"h1"}, rec.CompletedTasks)
	})

	t.Run("FindLatestPicksNewestForName", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		records := []*checkpoint.Record{
			{ID: "old", PipelineName: "p", CreatedAt: base},
			{ID: "new", PipelineName: "p", CreatedAt: base.Add(2 * time.Minute)},
			{ID: "mid", PipelineName: "p", CreatedAt: base.Add(time.Minute)},
		}
		for _, rec := range records {
			_, err := s.CreateIfAbsent(ctx, rec)
			require.NoError(t, err, "record %s", rec.ID)
		}
		_, err := s.CreateIfAbsent(ctx, &checkpoint.Record{ID: "other", PipelineName: "q", CreatedAt: base.Add(time.Hour)})
		require.NoError(t, err)

		rec, err := s.FindLatest(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "new", rec.ID)
		assert.Equal(t, "p", rec.PipelineName)
		assert.False(t, rec.IsCompleted)
	})

	t.Run("MarkCompleted", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateIfAbsent(ctx, &checkpoint.Record{ID: "r1", PipelineName: "p", CreatedAt: base})
		require.NoError(t, err)
		require.NoError(t, s.MarkCompleted(ctx, "r1"))

		rec, err := s.FindLatest(ctx, "p")
		require.NoError(t, err)
		assert.True(t, rec.IsCompleted)

		err = s.MarkCompleted(ctx, "missing")
		assert.True(t, errors.Is(err, checkpoint.ErrNotFound), "got %v", err)
	})

	t.Run("AppendIsNotDeduplicated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateIfAbsent(ctx, &checkpoint.Record{ID: "r1", PipelineName: "p", CreatedAt: base})
		require.NoError(t, err)

		ok, err := s.IsTaskCompleted(ctx, "r1", "h1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.AppendCompletedTask(ctx, "r1", "h1"))
		require.NoError(t, s.AppendCompletedTask(ctx, "r1", "h1"))

		ok, err = s.IsTaskCompleted(ctx, "r1", "h1")
		require.NoError(t, err)
		assert.True(t, ok)

		rec, err := s.FindLatest(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, []string{"h1", "h1"}, rec.CompletedTasks)

		ok, err = s.IsTaskCompleted(ctx, "missing", "h1")
		require.NoError(t, err)
		assert.False(t, ok)

		err = s.AppendCompletedTask(ctx, "missing", "h1")
		assert.True(t, errors.Is(err, checkpoint.ErrNotFound), "got %v", err)
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateIfAbsent(ctx, &checkpoint.Record{ID: "r1", PipelineName: "p", CreatedAt: base})
		require.NoError(t, err)

		const n = 16
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.AppendCompletedTask(ctx, "r1", fmt.Sprintf("h%d", i))
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		rec, err := s.FindLatest(ctx, "p")
		require.NoError(t, err)
		assert.Len(t, rec.CompletedTasks, n)
	})
}
