// Copyright 2025 James Ross
package obs

import (
	"context"
	"time"

	"github.com/reelvault/mediaserver/internal/config"
	"github.com/reelvault/mediaserver/internal/store"
	"go.uber.org/zap"
)

// SnapshotSource is implemented by anything that can produce a point-in-time
// QueueSnapshot; store.Store satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (store.QueueSnapshot, error)
}

// StartQueueSnapshotUpdater samples queue depth and dequeue rate on an interval
// and republishes them as gauges, the way the teacher's queue length poller does
// for Redis list lengths.
func StartQueueSnapshotUpdater(ctx context.Context, cfg *config.Config, src SnapshotSource, log *zap.Logger) {
	interval := cfg.Observability.QueueSampleInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := src.Snapshot(ctx)
				if err != nil {
					log.Debug("queue snapshot poll error", Err(err))
					continue
				}
				for kind, ks := range snap.ByKind {
					QueueDepth.WithLabelValues(string(kind), "ready").Set(float64(ks.Ready))
					QueueDepth.WithLabelValues(string(kind), "leased").Set(float64(ks.Leased))
					QueueDepth.WithLabelValues(string(kind), "deferred").Set(float64(ks.Deferred))
					QueueDepth.WithLabelValues(string(kind), "pending").Set(float64(ks.Pending))
					QueueDepth.WithLabelValues(string(kind), "dead_letter").Set(float64(ks.DeadLetter))
					DequeueRate.WithLabelValues(string(kind)).Set(ks.DequeuePerMinute)
				}
			}
		}
	}()
}
