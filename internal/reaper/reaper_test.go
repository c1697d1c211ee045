// Copyright 2025 James Ross
package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/reelvault/mediaserver/internal/config"
	"github.com/reelvault/mediaserver/internal/queue"
	"github.com/reelvault/mediaserver/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweepOnceResurrectsExpiredLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	st := store.NewRedisStore(client, "scan")
	cfg := &config.Config{
		Concurrency: config.Concurrency{
			MaxParallelScans: 4, MaxParallelAnalyses: 4, MaxParallelMetadata: 4,
			MaxParallelIndex: 4, MaxParallelImageFetch: 4, DefaultLibraryCap: 4,
		},
		Retry: config.Retry{MaxAttempts: 3, BackoffMaxMs: time.Second, FastRetryFactor: 1},
	}
	q := queue.NewService(st, cfg, zap.NewNop())

	ctx := context.Background()
	handle, err := q.Enqueue(ctx, queue.EnqueueRequest{Kind: store.KindFolderScan, LibraryID: "lib-1", MaxAttempts: 3})
	require.NoError(t, err)

	_, err = q.Dequeue(ctx, store.KindFolderScan, "worker-1", 20*time.Millisecond, nil)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	r := New(st, q, 10*time.Millisecond, zap.NewNop())
	r.sweepOnce(ctx)

	job, err := st.Get(ctx, handle.JobID)
	require.NoError(t, err)
	require.Equal(t, store.StateReady, job.State)
}
