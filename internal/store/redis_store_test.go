// Copyright 2025 James Ross
package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "scan"), mr
}

func newJob(kind JobKind) Job {
	return Job{
		ID:          uuid.New(),
		Kind:        kind,
		LibraryID:   "lib-1",
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}
}

func TestEnqueueDequeueComplete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	j := newJob(KindFolderScan)
	saved, created, err := s.Enqueue(ctx, j)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, StateReady, saved.State)

	leased, err := s.Dequeue(ctx, KindFolderScan, "worker-1", 30*time.Second, nil)
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.Equal(t, j.ID, leased.ID)
	require.Equal(t, StateLeased, leased.State)
	require.Equal(t, 1, leased.Attempts)

	err = s.Complete(ctx, j.ID, "worker-1")
	require.NoError(t, err)

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, got.State)
}

func TestDedupeReturnsExisting(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	j1 := newJob(KindFolderScan)
	j1.DedupeKey = "lib-1:/media/movies"
	saved1, created1, err := s.Enqueue(ctx, j1)
	require.NoError(t, err)
	require.True(t, created1)

	j2 := newJob(KindFolderScan)
	j2.DedupeKey = "lib-1:/media/movies"
	saved2, created2, err := s.Enqueue(ctx, j2)
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, saved1.ID, saved2.ID)
}

func TestDependencyReleaseOnComplete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	seriesJob := newJob(KindMetadataEnrich)
	_, _, err := s.Enqueue(ctx, seriesJob)
	require.NoError(t, err)

	const depKey = "series/42"
	episodes := make([]Job, 3)
	for i := range episodes {
		j := newJob(KindMetadataEnrich)
		j.DependencyKey = depKey
		saved, _, err := s.Enqueue(ctx, j)
		require.NoError(t, err)
		require.Equal(t, StatePending, saved.State)
		episodes[i] = saved
	}

	leasedSeries, err := s.Dequeue(ctx, KindMetadataEnrich, "worker-1", 30*time.Second, nil)
	require.NoError(t, err)
	require.NotNil(t, leasedSeries)
	require.Equal(t, seriesJob.ID, leasedSeries.ID)

	err = s.Complete(ctx, seriesJob.ID, "worker-1")
	require.NoError(t, err)

	n, err := s.ReleaseDependency(ctx, seriesJob.LibraryID, depKey)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, ep := range episodes {
		got, err := s.Get(ctx, ep.ID)
		require.NoError(t, err)
		require.Equal(t, StateReady, got.State)
	}
}

func TestFailRetryThenDeadLetter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	j := newJob(KindImageFetch)
	j.MaxAttempts = 2
	_, _, err := s.Enqueue(ctx, j)
	require.NoError(t, err)

	leased, err := s.Dequeue(ctx, KindImageFetch, "worker-1", 30*time.Second, nil)
	require.NoError(t, err)
	require.NotNil(t, leased)

	err = s.Fail(ctx, j.ID, "worker-1", "transient network error", 10*time.Millisecond)
	require.NoError(t, err)

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, StateDeferred, got.State)

	time.Sleep(20 * time.Millisecond)
	n, err := s.PromoteDeferred(ctx, KindImageFetch)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	leased2, err := s.Dequeue(ctx, KindImageFetch, "worker-1", 30*time.Second, nil)
	require.NoError(t, err)
	require.NotNil(t, leased2)
	require.Equal(t, 2, leased2.Attempts)

	err = s.DeadLetter(ctx, j.ID, "worker-1", "exhausted retries")
	require.NoError(t, err)

	got, err = s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, StateDeadLetter, got.State)
}

func TestSweepExpiredLeases(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	j := newJob(KindFolderScan)
	_, _, err := s.Enqueue(ctx, j)
	require.NoError(t, err)

	_, err = s.Dequeue(ctx, KindFolderScan, "worker-1", 20*time.Millisecond, nil)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	n, err := s.SweepExpiredLeases(ctx, KindFolderScan)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, StateReady, got.State)
}

func TestCancelTerminalIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	j := newJob(KindIndex)
	_, _, err := s.Enqueue(ctx, j)
	require.NoError(t, err)

	_, err = s.Dequeue(ctx, KindIndex, "worker-1", 30*time.Second, nil)
	require.NoError(t, err)
	err = s.Complete(ctx, j.ID, "worker-1")
	require.NoError(t, err)

	err = s.Cancel(ctx, j.ID)
	require.ErrorIs(t, err, ErrTerminalState)
}

func TestDequeueHonorsLibraryOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := newJob(KindAnalyze)
	a.LibraryID = "lib-a"
	_, _, err := s.Enqueue(ctx, a)
	require.NoError(t, err)

	b := newJob(KindAnalyze)
	b.LibraryID = "lib-b"
	_, _, err = s.Enqueue(ctx, b)
	require.NoError(t, err)

	libs, err := s.ReadyLibraries(ctx, KindAnalyze)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"lib-a", "lib-b"}, libs)

	leased, err := s.Dequeue(ctx, KindAnalyze, "worker-1", 30*time.Second, []string{"lib-b", "lib-a"})
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.Equal(t, b.ID, leased.ID)

	remaining, err := s.ReadyLibraries(ctx, KindAnalyze)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"lib-a"}, remaining)
}

func TestSnapshotCounts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := s.Enqueue(ctx, newJob(KindAnalyze))
		require.NoError(t, err)
	}
	_, err := s.Dequeue(ctx, KindAnalyze, "worker-1", 30*time.Second, nil)
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snap.ByKind[KindAnalyze].Ready)
	require.Equal(t, 1, snap.ByKind[KindAnalyze].Leased)
}
