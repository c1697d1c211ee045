// Copyright 2025 James Ross
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store is the durable, lease-based job store every other orchestrator
// component is built on. Every method that spans more than one key executes
// as a single Lua script so a crash mid-transition can never leave a job
// readable from two queues at once.
type Store interface {
	Enqueue(ctx context.Context, job Job) (Job, bool, error)
	EnqueueMany(ctx context.Context, jobs []Job) ([]Job, error)
	Dequeue(ctx context.Context, kind JobKind, owner string, leaseTTL time.Duration, libraryOrder []string) (*Job, error)
	ReadyLibraries(ctx context.Context, kind JobKind) ([]string, error)
	Renew(ctx context.Context, id uuid.UUID, kind JobKind, owner string, leaseTTL time.Duration) error
	Complete(ctx context.Context, id uuid.UUID, owner string) error
	Fail(ctx context.Context, id uuid.UUID, owner string, errMsg string, retryDelay time.Duration) error
	DeadLetter(ctx context.Context, id uuid.UUID, owner string, reason string) error
	RequeueDeadLetter(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	PromoteDeferred(ctx context.Context, kind JobKind) (int, error)
	SweepExpiredLeases(ctx context.Context, kind JobKind) (int, error)
	ReleaseDependency(ctx context.Context, libraryID, key string) (int, error)
	Snapshot(ctx context.Context) (QueueSnapshot, error)
}

// RedisStore is the only production Store implementation.
type RedisStore struct {
	client *redis.Client
	keys   keyspace

	mu       sync.Mutex
	rateLast map[JobKind]rateSample
}

type rateSample struct {
	count int64
	at    time.Time
}

// NewRedisStore wraps an already-constructed client; prefix namespaces every
// key so multiple orchestrator deployments can share a Redis instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client:   client,
		keys:     newKeyspace(prefix),
		rateLast: make(map[JobKind]rateSample),
	}
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == redis.Nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func isLeaseOwnerMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "lease_owner_mismatch")
}

// Enqueue reserves the job's dedupe key (if any) and writes it to the ready
// or pending set. When the dedupe key is already active, Enqueue returns the
// existing job's id with ok=false instead of creating a duplicate.
func (s *RedisStore) Enqueue(ctx context.Context, job Job) (Job, bool, error) {
	if job.DedupeKey != "" {
		res, err := dedupeReserveScript.Run(ctx, s.client,
			[]string{s.keys.dedupe(job.DedupeKey)},
			job.ID.String(), int(24*time.Hour/time.Second),
		).Result()
		if err != nil {
			return Job{}, false, wrapErr(err)
		}
		if existingID, ok := res.(string); ok {
			existing, err := s.Get(ctx, uuid.MustParse(existingID))
			if err != nil {
				return Job{}, false, err
			}
			return *existing, false, nil
		}
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	state := StateReady
	if job.DependencyKey != "" {
		state = StatePending
	}
	job.State = state

	keys := []string{
		s.keys.job(job.ID.String()),
		s.keys.pendingKey(job.LibraryID, job.DependencyKey),
		s.keys.pending(job.Kind),
		s.keys.ready(job.Kind, job.LibraryID),
		s.keys.readyLibs(job.Kind),
	}
	args := []interface{}{
		string(state),
		readyScore(job.Priority, job.CreatedAt),
		job.ID.String(),
		job.LibraryID,
	}
	for k, v := range toHash(job) {
		args = append(args, k, v)
	}

	if _, err := enqueueScript.Run(ctx, s.client, keys, args...).Result(); err != nil {
		return Job{}, false, wrapErr(err)
	}
	return job, true, nil
}

// EnqueueMany enqueues a batch, stopping at the first failure. It does not
// roll back jobs already written; callers that need the batch to be
// effectively atomic must make every job's DedupeKey deterministic and retry
// the whole batch on error, so a retry skips the jobs already reserved.
func (s *RedisStore) EnqueueMany(ctx context.Context, jobs []Job) ([]Job, error) {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		saved, _, err := s.Enqueue(ctx, j)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// Dequeue leases the highest-priority eligible job for kind. libraryOrder, if
// non-empty, is tried in the given order (the scheduler's fairness decision);
// when empty, every library currently holding ready work for this kind is
// tried in whatever order Redis returns its set membership.
func (s *RedisStore) Dequeue(ctx context.Context, kind JobKind, owner string, leaseTTL time.Duration, libraryOrder []string) (*Job, error) {
	order := libraryOrder
	if len(order) == 0 {
		libs, err := s.ReadyLibraries(ctx, kind)
		if err != nil {
			return nil, err
		}
		order = libs
	}
	if len(order) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(order)+3)
	for _, lib := range order {
		keys = append(keys, s.keys.ready(kind, lib))
	}
	keys = append(keys, s.keys.readyLibs(kind), s.keys.leased(kind), s.keys.dequeueCounter(kind))

	expiry := time.Now().Add(leaseTTL)
	args := []interface{}{owner, expiry.Unix(), s.keys.job(""), len(order)}
	for _, lib := range order {
		args = append(args, lib)
	}
	res, err := dequeueScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	id, ok := res.(string)
	if !ok || id == "" {
		return nil, nil
	}
	return s.Get(ctx, uuid.MustParse(id))
}

// ReadyLibraries lists libraries with at least one ready job of kind, the
// candidate set the scheduler ranks by fairness before calling Dequeue.
func (s *RedisStore) ReadyLibraries(ctx context.Context, kind JobKind) ([]string, error) {
	libs, err := s.client.SMembers(ctx, s.keys.readyLibs(kind)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return libs, nil
}

func (s *RedisStore) Renew(ctx context.Context, id uuid.UUID, kind JobKind, owner string, leaseTTL time.Duration) error {
	expiry := time.Now().Add(leaseTTL)
	res, err := renewScript.Run(ctx, s.client,
		[]string{s.keys.job(id.String()), s.keys.leased(kind)},
		owner, expiry.Unix(), id.String(),
	).Result()
	if err != nil {
		return wrapErr(err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLeaseOwnerMismatch
	}
	return nil
}

func (s *RedisStore) Complete(ctx context.Context, id uuid.UUID, owner string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = completeScript.Run(ctx, s.client,
		[]string{s.keys.job(id.String()), s.keys.leased(job.Kind)},
		owner, id.String(), job.DedupeKey,
	).Result()
	if err != nil {
		if isLeaseOwnerMismatch(err) {
			return ErrLeaseOwnerMismatch
		}
		return wrapErr(err)
	}
	return nil
}

// ReleaseDependency drains every job parked on (libraryID, key) straight from
// Pending to Ready, the fan-in release the Queue Service exposes as its own
// operation and that actors trigger explicitly on series resolution.
func (s *RedisStore) ReleaseDependency(ctx context.Context, libraryID, key string) (int, error) {
	res, err := releaseDependencyScript.Run(ctx, s.client,
		[]string{s.keys.pendingKey(libraryID, key)},
		s.keys.job(""), s.keys.raw(),
	).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	n, _ := res.(int64)
	return int(n), nil
}

// Fail moves a job to deferred (scheduled for retry at retryDelay) when
// retryDelay > 0, otherwise dead-letters it directly.
func (s *RedisStore) Fail(ctx context.Context, id uuid.UUID, owner string, errMsg string, retryDelay time.Duration) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if retryDelay <= 0 {
		return s.DeadLetter(ctx, id, owner, errMsg)
	}
	notBefore := time.Now().Add(retryDelay)
	res, err := failScript.Run(ctx, s.client,
		[]string{s.keys.job(id.String()), s.keys.leased(job.Kind)},
		owner, id.String(), "retry", s.keys.deferred(job.Kind), s.keys.deadLetter(job.Kind),
		notBefore.Format(timeLayout), errMsg, "", notBefore.Unix(),
	).Result()
	if err != nil {
		return wrapErr(err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLeaseOwnerMismatch
	}
	return nil
}

func (s *RedisStore) DeadLetter(ctx context.Context, id uuid.UUID, owner string, reason string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	res, err := failScript.Run(ctx, s.client,
		[]string{s.keys.job(id.String()), s.keys.leased(job.Kind)},
		owner, id.String(), "dead_letter", s.keys.deferred(job.Kind), s.keys.deadLetter(job.Kind),
		"", reason, job.DedupeKey, 0,
	).Result()
	if err != nil {
		return wrapErr(err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLeaseOwnerMismatch
	}
	return nil
}

// RequeueDeadLetter moves a dead-lettered job back to ready with a reset
// attempt counter, for an operator to give a fixed-forward job another try.
func (s *RedisStore) RequeueDeadLetter(ctx context.Context, id uuid.UUID) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	res, err := requeueDeadLetterScript.Run(ctx, s.client,
		[]string{s.keys.job(id.String()), s.keys.deadLetter(job.Kind)},
		id.String(), s.keys.raw(), s.keys.raw(),
	).Result()
	if err != nil {
		return wrapErr(err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrNotDeadLettered
	}
	return nil
}

func (s *RedisStore) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	res, err := cancelScript.Run(ctx, s.client,
		[]string{s.keys.job(id.String())},
		id.String(), s.keys.deferred(job.Kind), s.keys.leased(job.Kind),
		s.keys.pending(job.Kind), job.DedupeKey, s.keys.raw(),
	).Result()
	if err != nil {
		return wrapErr(err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrTerminalState
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	m, err := s.client.HGetAll(ctx, s.keys.job(id.String())).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	j := fromHash(m)
	return &j, nil
}

func (s *RedisStore) PromoteDeferred(ctx context.Context, kind JobKind) (int, error) {
	res, err := promoteDeferredScript.Run(ctx, s.client,
		[]string{s.keys.deferred(kind)},
		time.Now().Unix(), s.keys.job(""), s.keys.raw(),
	).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	n, _ := res.(int64)
	return int(n), nil
}

func (s *RedisStore) SweepExpiredLeases(ctx context.Context, kind JobKind) (int, error) {
	res, err := sweepExpiredLeasesScript.Run(ctx, s.client,
		[]string{s.keys.leased(kind)},
		time.Now().Unix(), s.keys.deadLetter(kind), s.keys.job(""), s.keys.raw(),
	).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	n, _ := res.(int64)
	return int(n), nil
}

// Snapshot reports per-kind queue depths and a rolling dequeue rate computed
// from the delta in each kind's dequeue counter since the last call.
func (s *RedisStore) Snapshot(ctx context.Context) (QueueSnapshot, error) {
	now := time.Now()
	out := QueueSnapshot{ByKind: make(map[JobKind]KindSnapshot, len(AllKinds))}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range AllKinds {
		libs, err := s.ReadyLibraries(ctx, kind)
		if err != nil {
			return out, err
		}
		var ready int64
		for _, lib := range libs {
			c, err := s.client.ZCard(ctx, s.keys.ready(kind, lib)).Result()
			if err != nil {
				return out, wrapErr(err)
			}
			ready += c
		}
		leased, err := s.client.ZCard(ctx, s.keys.leased(kind)).Result()
		if err != nil {
			return out, wrapErr(err)
		}
		deferred, err := s.client.ZCard(ctx, s.keys.deferred(kind)).Result()
		if err != nil {
			return out, wrapErr(err)
		}
		pending, err := s.client.SCard(ctx, s.keys.pending(kind)).Result()
		if err != nil {
			return out, wrapErr(err)
		}
		deadLetter, err := s.client.LLen(ctx, s.keys.deadLetter(kind)).Result()
		if err != nil {
			return out, wrapErr(err)
		}
		count, _ := s.client.Get(ctx, s.keys.dequeueCounter(kind)).Int64()

		rate := 0.0
		if last, ok := s.rateLast[kind]; ok {
			elapsed := now.Sub(last.at).Minutes()
			if elapsed > 0 {
				rate = float64(count-last.count) / elapsed
			}
		}
		s.rateLast[kind] = rateSample{count: count, at: now}

		out.ByKind[kind] = KindSnapshot{
			Ready:            int(ready),
			Leased:           int(leased),
			Deferred:         int(deferred),
			Pending:          int(pending),
			DeadLetter:       int(deadLetter),
			DequeuePerMinute: rate,
		}
	}
	return out, nil
}
