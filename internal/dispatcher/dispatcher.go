// Copyright 2025 James Ross

// Package dispatcher runs one worker pool per job kind: each worker
// dequeues a lease, invokes the kind's actor, renews the lease on a ticker
// while the actor runs, and translates the actor's outcome into Queue
// Service calls. Grounded on the teacher's worker package's pull-loop shape
// (dequeue, process, ack/nack), generalized to a per-kind pool with
// lease-renewal and poison-class circuit breaking this teacher's worker
// loop doesn't need.
package dispatcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/reelvault/mediaserver/internal/breaker"
	"github.com/reelvault/mediaserver/internal/events"
	"github.com/reelvault/mediaserver/internal/obs"
	"github.com/reelvault/mediaserver/internal/queue"
	"github.com/reelvault/mediaserver/internal/store"
	"go.uber.org/zap"
)

// PoolConfig sizes and times one kind's worker pool.
type PoolConfig struct {
	Kind          store.JobKind
	WorkerCount   int
	LeaseTTL      time.Duration
	RenewFraction float64
}

// Pool runs WorkerCount goroutines dequeuing and executing jobs of one kind.
type Pool struct {
	cfg            PoolConfig
	queue          queue.Service
	actor          actors.Actor
	bus            *events.Bus
	breaker        *breaker.CircuitBreaker
	log            *zap.Logger
	workerIDPrefix string
}

// NewPool builds a worker pool for one kind. The breaker governs pausing
// the whole pool on a poison error class; pass a fresh breaker per kind.
func NewPool(cfg PoolConfig, q queue.Service, actor actors.Actor, bus *events.Bus, cb *breaker.CircuitBreaker, log *zap.Logger, workerIDPrefix string) *Pool {
	return &Pool{cfg: cfg, queue: q, actor: actor, bus: bus, breaker: cb, log: log, workerIDPrefix: workerIDPrefix}
}

// Run starts WorkerCount goroutines and blocks until ctx is cancelled or
// every worker exits.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.WorkerCount; i++ {
		wg.Add(1)
		workerID := workerName(p.workerIDPrefix, p.cfg.Kind, i)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, workerID)
		}()
	}
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !p.breaker.Allow() {
			obs.DispatcherPauseState.WithLabelValues(string(p.cfg.Kind)).Set(1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		obs.DispatcherPauseState.WithLabelValues(string(p.cfg.Kind)).Set(0)

		lease, err := p.queue.Dequeue(ctx, p.cfg.Kind, workerID, p.cfg.LeaseTTL, nil)
		if err != nil {
			p.log.Warn("dequeue failed", obs.String("kind", string(p.cfg.Kind)), obs.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if lease == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		p.processLease(ctx, lease)
	}
}

func (p *Pool) processLease(ctx context.Context, lease *queue.JobLease) {
	p.bus.PublishJob(events.JobEvent{
		Type: events.JobLeased, JobID: lease.JobID, Kind: lease.Kind,
		LibraryID: lease.LibraryID, CorrelationID: lease.CorrelationID,
		Attempt: lease.Attempts, Timestamp: time.Now(),
	})

	actorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	renewDone := make(chan struct{})
	go p.renewLoop(actorCtx, lease, cancel, renewDone)
	defer func() { <-renewDone }()

	start := time.Now()
	outcome, err := p.actor.Execute(actorCtx, actors.Command{
		JobID: lease.JobID.String(), Kind: lease.Kind, LibraryID: lease.LibraryID,
		Attempt: lease.Attempts, DependencyKey: lease.DependencyKey, Payload: lease.Payload,
	})
	obs.JobProcessingDuration.WithLabelValues(string(lease.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		p.handleFailure(ctx, lease, err)
		return
	}
	p.breaker.Record(true)
	p.handleSuccess(ctx, lease, outcome)
}

func (p *Pool) renewLoop(ctx context.Context, lease *queue.JobLease, abort context.CancelFunc, done chan struct{}) {
	defer close(done)
	interval := time.Duration(float64(p.cfg.LeaseTTL) * p.cfg.RenewFraction)
	if interval <= 0 {
		interval = p.cfg.LeaseTTL / 3
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := p.queue.Renew(ctx, lease, p.cfg.LeaseTTL)
			if err != nil {
				p.log.Warn("lease renewal failed, aborting job", obs.String("job_id", lease.JobID.String()), obs.Err(err))
				abort()
				return
			}
			*lease = *renewed
		}
	}
}

func (p *Pool) handleSuccess(ctx context.Context, lease *queue.JobLease, outcome actors.Outcome) {
	if len(outcome.FollowUps) > 0 {
		reqs := make([]queue.EnqueueRequest, len(outcome.FollowUps))
		for i, f := range outcome.FollowUps {
			reqs[i] = queue.EnqueueRequest{
				Kind: f.Kind, LibraryID: f.LibraryID, Priority: f.Priority,
				DedupeKey: f.DedupeKey, DependencyKey: f.DependencyKey, Payload: f.Payload,
			}
		}
		if _, err := p.queue.EnqueueMany(ctx, reqs); err != nil {
			// Follow-ups are not yet durable: failing (rather than completing)
			// the source job keeps its work item alive so a retry re-runs the
			// actor and re-emits these follow-ups. Every follow-up above carries
			// a deterministic DedupeKey, so the retry collapses onto whichever
			// of them already landed instead of duplicating them.
			p.log.Error("follow-up enqueue failed after actor success, retrying source job", obs.String("job_id", lease.JobID.String()), obs.Err(err))
			if failErr := p.queue.Fail(ctx, lease, true, "follow-up enqueue failed: "+err.Error()); failErr != nil {
				p.log.Error("fail after follow-up enqueue failure also failed", obs.Err(failErr))
			}
			p.bus.PublishJob(events.JobEvent{
				Type: events.JobFailed, JobID: lease.JobID, Kind: lease.Kind,
				LibraryID: lease.LibraryID, CorrelationID: lease.CorrelationID,
				Attempt: lease.Attempts, Timestamp: time.Now(),
			})
			return
		}
	}
	if outcome.ReleaseKey != "" {
		if _, err := p.queue.ReleaseDependency(ctx, outcome.ReleaseLibraryID, outcome.ReleaseKey); err != nil {
			p.log.Error("dependency release failed", obs.String("key", outcome.ReleaseKey), obs.Err(err))
		}
	}
	if err := p.queue.Complete(ctx, lease); err != nil {
		p.log.Error("complete failed", obs.String("job_id", lease.JobID.String()), obs.Err(err))
		return
	}
	p.bus.PublishJob(events.JobEvent{
		Type: events.JobCompleted, JobID: lease.JobID, Kind: lease.Kind,
		LibraryID: lease.LibraryID, CorrelationID: lease.CorrelationID,
		Attempt: lease.Attempts, Timestamp: time.Now(),
	})
}

func (p *Pool) handleFailure(ctx context.Context, lease *queue.JobLease, actorErr error) {
	ae, ok := actorErr.(*actors.ActorError)
	if !ok {
		ae = actors.NewError("internal_error", true, actorErr)
	}

	if ae.Poison {
		p.breaker.TripManual()
		p.log.Error("poison error, pausing pool", obs.String("kind", string(lease.Kind)), obs.String("class", string(ae.Class)))
	} else {
		p.breaker.Record(false)
	}

	if !ae.Retryable {
		if err := p.queue.DeadLetter(ctx, lease, ae.Error()); err != nil {
			p.log.Error("dead-letter failed", obs.Err(err))
			return
		}
		p.bus.PublishJob(events.JobEvent{
			Type: events.JobDeadLettered, JobID: lease.JobID, Kind: lease.Kind,
			LibraryID: lease.LibraryID, CorrelationID: lease.CorrelationID,
			Attempt: lease.Attempts, Timestamp: time.Now(),
		})
		return
	}

	if err := p.queue.Fail(ctx, lease, true, ae.Error()); err != nil {
		p.log.Error("fail failed", obs.Err(err))
		return
	}
	p.bus.PublishJob(events.JobEvent{
		Type: events.JobFailed, JobID: lease.JobID, Kind: lease.Kind,
		LibraryID: lease.LibraryID, CorrelationID: lease.CorrelationID,
		Attempt: lease.Attempts, Timestamp: time.Now(),
	})
}

func workerName(prefix string, kind store.JobKind, i int) string {
	if prefix == "" {
		prefix = "worker"
	}
	return prefix + "-" + string(kind) + "-" + strconv.Itoa(i)
}
