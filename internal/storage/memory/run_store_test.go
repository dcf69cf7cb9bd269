package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tgc-rag/internal/store"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	runID := uuid.New()
	start := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.StartRun(ctx, runID, start))
	require.NoError(t, s.StartRun(ctx, runID, start.Add(time.Minute)))
	require.NoError(t, s.AddCounters(ctx, runID, store.RunCounters{URLs: 3, Articles: 2}, start))
	require.NoError(t, s.AddCounters(ctx, runID, store.RunCounters{Chunks: 5, Failed: 1}, start))
	msg := "interrupted"
	require.NoError(t, s.FinishRun(ctx, runID, start.Add(time.Hour), store.RunCancelled, &msg))

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, start, run.StartedAt)
	require.Equal(t, store.RunCancelled, run.Status)
	require.Equal(t, store.RunCounters{URLs: 3, Articles: 2, Chunks: 5, Failed: 1}, run.Counters)
	require.Equal(t, "interrupted", *run.ErrorMessage)
}

func TestRunStoreUnknownRun(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	_, err := s.GetRun(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.AddCounters(context.Background(), uuid.New(), store.RunCounters{}, time.Now()), store.ErrNotFound)
	require.ErrorIs(t, s.FinishRun(context.Background(), uuid.New(), time.Now(), store.RunCompleted, nil), store.ErrNotFound)
}

func TestRunStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	base := time.Unix(1700000000, 0)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		require.NoError(t, s.StartRun(ctx, id, base.Add(time.Duration(i)*time.Hour)))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, ids[2], runs[0].ID)
	require.Equal(t, ids[1], runs[1].ID)
}
