// Package reaper implements the Lease Expiry Scanner of spec §4.2: a
// background ticker that resurrects jobs whose lease holder went silent.
// Adapted from the teacher's reaper.Reaper, which scans abandoned
// `jobqueue:worker:*:processing` lists on the same cadence; this version
// delegates the scan to store.Store.SweepExpiredLeases since lease
// ownership here lives in a sorted set keyed by expiry, not a per-worker
// processing list.
package reaper

import (
	"context"
	"time"

	"github.com/reelvault/mediaserver/internal/obs"
	"github.com/reelvault/mediaserver/internal/queue"
	"github.com/reelvault/mediaserver/internal/store"
	"go.uber.org/zap"
)

// Reaper sweeps every job kind on a fixed interval, resurrecting expired
// leases back to Ready and correcting the Queue Service's active-count
// tracker so the scheduler's fairness ratios don't drift.
type Reaper struct {
	store    store.Store
	queue    queue.Service
	interval time.Duration
	log      *zap.Logger
}

func New(st store.Store, q queue.Service, interval time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{store: st, queue: q, interval: interval, log: log}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Reaper) sweepOnce(ctx context.Context) {
	for _, kind := range store.AllKinds {
		n, err := r.store.SweepExpiredLeases(ctx, kind)
		if err != nil {
			r.log.Warn("reaper sweep failed", obs.String("kind", string(kind)), obs.Err(err))
			continue
		}
		if n == 0 {
			continue
		}
		r.queue.NotifyResurrected(kind, n)
		obs.LeaseExpiredTotal.Add(float64(n))
		r.log.Warn("resurrected expired leases", obs.String("kind", string(kind)), obs.Int("count", n))
	}
}
