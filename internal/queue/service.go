// Package queue implements the Queue Service, the API surface described in
// spec §4.1 over the Job Store: enqueue, dequeue-with-lease, renew,
// complete, fail, dead-letter, queue-depth, release-dependency. It layers
// the Scheduler's fairness ranking and retry/backoff policy on top of
// internal/store, the way the teacher's worker package sits on top of its
// raw Redis client instead of every caller touching keys directly.
package queue

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/mediaserver/internal/config"
	"github.com/reelvault/mediaserver/internal/ids"
	"github.com/reelvault/mediaserver/internal/obs"
	"github.com/reelvault/mediaserver/internal/scheduler"
	"github.com/reelvault/mediaserver/internal/store"
	"go.uber.org/zap"
)

// Service is the Queue Service contract every dispatcher worker and admin
// handler is built against.
type Service interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (JobHandle, error)
	EnqueueMany(ctx context.Context, reqs []EnqueueRequest) ([]JobHandle, error)
	Dequeue(ctx context.Context, kind store.JobKind, workerID string, leaseTTL time.Duration, sel *Selector) (*JobLease, error)
	Renew(ctx context.Context, lease *JobLease, extendBy time.Duration) (*JobLease, error)
	Complete(ctx context.Context, lease *JobLease) error
	Fail(ctx context.Context, lease *JobLease, retryable bool, errMsg string) error
	DeadLetter(ctx context.Context, lease *JobLease, reason string) error
	CancelJob(ctx context.Context, jobID uuid.UUID) error
	RequeueDeadLetter(ctx context.Context, jobID uuid.UUID) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*store.Job, error)
	QueueDepth(ctx context.Context, kind store.JobKind) (store.KindSnapshot, error)
	Snapshot(ctx context.Context) (store.QueueSnapshot, error)
	ReleaseDependency(ctx context.Context, libraryID, key string) (int, error)
	// NotifyResurrected corrects the active-job tracker after the Lease
	// Expiry Scanner moves n leased jobs of kind back to Ready. The scanner
	// can't attribute the correction to specific libraries (leases aren't
	// indexed per library), so fairness briefly over-counts the kind's
	// global active total until the next Complete/Fail naturally settles it.
	NotifyResurrected(kind store.JobKind, n int)
}

type service struct {
	store  store.Store
	cfg    *config.Config
	log    *zap.Logger
	active *activeTracker
	rng    *rand.Rand
}

// NewService wires a Queue Service over store with the scheduler and retry
// policy driven by cfg.
func NewService(st store.Store, cfg *config.Config, log *zap.Logger) Service {
	return &service{
		store:  st,
		cfg:    cfg,
		log:    log,
		active: newActiveTracker(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *service) Enqueue(ctx context.Context, req EnqueueRequest) (JobHandle, error) {
	job := store.Job{
		ID:            ids.New(),
		Kind:          req.Kind,
		LibraryID:     req.LibraryID,
		Priority:      req.Priority,
		Payload:       req.Payload,
		DedupeKey:     req.DedupeKey,
		DependencyKey: req.DependencyKey,
		CorrelationID: ids.New(),
		MaxAttempts:   req.MaxAttempts,
		NotBefore:     req.NotBefore,
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = s.cfg.Retry.MaxAttempts
	}

	saved, created, err := s.store.Enqueue(ctx, job)
	if err != nil {
		return JobHandle{}, fmt.Errorf("queue: enqueue: %w", err)
	}
	if created {
		obs.JobsEnqueued.WithLabelValues(string(req.Kind)).Inc()
	} else {
		obs.JobsDeduped.WithLabelValues(string(req.Kind)).Inc()
	}
	return JobHandle{JobID: saved.ID, Deduped: !created}, nil
}

// EnqueueMany enqueues every request, stopping (without rollback) at the
// first failure: a crash or Redis error partway through can leave some
// requests enqueued and others not. Callers that treat the whole batch as
// one unit of work (the dispatcher's follow-up fan-out) must not acknowledge
// that unit of work as done when this returns an error, and must give every
// request a deterministic DedupeKey so that retrying the full batch collapses
// onto whichever requests already landed instead of duplicating them.
func (s *service) EnqueueMany(ctx context.Context, reqs []EnqueueRequest) ([]JobHandle, error) {
	out := make([]JobHandle, 0, len(reqs))
	for _, r := range reqs {
		h, err := s.Enqueue(ctx, r)
		if err != nil {
			return out, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *service) Dequeue(ctx context.Context, kind store.JobKind, workerID string, leaseTTL time.Duration, sel *Selector) (*JobLease, error) {
	globalCap := scheduler.KindCap(kind,
		s.cfg.Concurrency.MaxParallelScans,
		s.cfg.Concurrency.MaxParallelAnalyses,
		s.cfg.Concurrency.MaxParallelMetadata,
		s.cfg.Concurrency.MaxParallelIndex,
		s.cfg.Concurrency.MaxParallelImageFetch,
	)

	var order []string
	if sel != nil && sel.LibraryID != "" {
		order = []string{sel.LibraryID}
	} else {
		libs, err := s.store.ReadyLibraries(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("queue: dequeue: %w", err)
		}
		// OldestScore is left at zero, so libraries with equal active/cap
		// ratios keep the order ReadyLibraries returned them in rather than
		// oldest-work order.
		candidates := make([]scheduler.LibraryCandidate, len(libs))
		for i, lib := range libs {
			candidates[i] = scheduler.LibraryCandidate{
				LibraryID:   lib,
				ActiveCount: s.active.libraryCount(kind, lib),
			}
		}
		// Bulk-mode widening is decided from the kind's total active count
		// across all libraries, and the one resulting cap applies to every
		// library.
		libCap := scheduler.EffectiveLibraryCap(
			s.cfg.Concurrency.DefaultLibraryCap,
			s.active.globalCount(kind),
			s.cfg.BulkMode.BulkThreshold,
			s.cfg.BulkMode.SpeedupFactor,
		)
		decision := scheduler.SelectLibraries(candidates, scheduler.Limits{
			GlobalCap:  globalCap,
			LibraryCap: libCap,
		}, s.active.globalCount(kind))
		order = decision.Libraries
	}

	job, err := s.store.Dequeue(ctx, kind, workerID, leaseTTL, order)
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	s.active.inc(kind, job.LibraryID)
	obs.JobsDequeued.WithLabelValues(string(kind)).Inc()
	return leaseFromJob(job, workerID), nil
}

func (s *service) Renew(ctx context.Context, lease *JobLease, extendBy time.Duration) (*JobLease, error) {
	if err := s.store.Renew(ctx, lease.JobID, lease.Kind, lease.WorkerID, extendBy); err != nil {
		return nil, err
	}
	job, err := s.store.Get(ctx, lease.JobID)
	if err != nil {
		return nil, err
	}
	return leaseFromJob(job, lease.WorkerID), nil
}

func (s *service) Complete(ctx context.Context, lease *JobLease) error {
	if err := s.store.Complete(ctx, lease.JobID, lease.WorkerID); err != nil {
		return err
	}
	s.active.dec(lease.Kind, lease.LibraryID)
	obs.JobsCompleted.WithLabelValues(string(lease.Kind)).Inc()
	return nil
}

// Fail applies the scheduler's retry/backoff policy before handing the
// delay to the store, which is the boundary spec §4.3 describes: the
// scheduler decides the delay, the store just needs "retry at this time".
func (s *service) Fail(ctx context.Context, lease *JobLease, retryable bool, errMsg string) error {
	s.active.dec(lease.Kind, lease.LibraryID)
	if !retryable {
		obs.JobsDeadLetter.WithLabelValues(string(lease.Kind)).Inc()
		return s.store.Fail(ctx, lease.JobID, lease.WorkerID, errMsg, 0)
	}
	if lease.Attempts >= lease.MaxAttempts {
		obs.JobsDeadLetter.WithLabelValues(string(lease.Kind)).Inc()
		return s.store.Fail(ctx, lease.JobID, lease.WorkerID, errMsg, 0)
	}
	libraryActive := s.active.libraryCount(lease.Kind, lease.LibraryID)
	delay := scheduler.ComputeBackoff(lease.Attempts, libraryActive, s.cfg.Retry, s.rng.Float64()*2-1)
	obs.JobsFailed.WithLabelValues(string(lease.Kind)).Inc()
	obs.JobsRetried.WithLabelValues(string(lease.Kind)).Inc()
	return s.store.Fail(ctx, lease.JobID, lease.WorkerID, errMsg, delay)
}

func (s *service) DeadLetter(ctx context.Context, lease *JobLease, reason string) error {
	s.active.dec(lease.Kind, lease.LibraryID)
	obs.JobsDeadLetter.WithLabelValues(string(lease.Kind)).Inc()
	return s.store.DeadLetter(ctx, lease.JobID, lease.WorkerID, reason)
}

func (s *service) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.store.Cancel(ctx, jobID); err != nil {
		if err == store.ErrTerminalState {
			return nil
		}
		return err
	}
	if job.State == store.StateLeased {
		s.active.dec(job.Kind, job.LibraryID)
	}
	obs.JobsCancelled.WithLabelValues(string(job.Kind)).Inc()
	return nil
}

func (s *service) RequeueDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.store.RequeueDeadLetter(ctx, jobID); err != nil {
		return err
	}
	obs.JobsEnqueued.WithLabelValues(string(job.Kind)).Inc()
	return nil
}

func (s *service) GetJob(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	return s.store.Get(ctx, jobID)
}

func (s *service) QueueDepth(ctx context.Context, kind store.JobKind) (store.KindSnapshot, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return store.KindSnapshot{}, err
	}
	return snap.ByKind[kind], nil
}

func (s *service) Snapshot(ctx context.Context) (store.QueueSnapshot, error) {
	return s.store.Snapshot(ctx)
}

func (s *service) NotifyResurrected(kind store.JobKind, n int) {
	s.active.dropKind(kind, n)
}

func (s *service) ReleaseDependency(ctx context.Context, libraryID, key string) (int, error) {
	n, err := s.store.ReleaseDependency(ctx, libraryID, key)
	if err != nil {
		return 0, err
	}
	obs.DependencyReleasedTotal.Add(float64(n))
	return n, nil
}
