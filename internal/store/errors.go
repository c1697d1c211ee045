// Copyright 2025 James Ross
package store

import "errors"

var (
	// ErrStoreUnavailable wraps any transport-level Redis failure.
	ErrStoreUnavailable = errors.New("store: backend unavailable")
	// ErrNotFound is returned when a job id does not exist.
	ErrNotFound = errors.New("store: job not found")
	// ErrLeaseExpired is not returned by RedisStore: once the lease expiry
	// scanner has reclaimed a lease, Renew/Complete/Fail/DeadLetter from its
	// former holder fail with ErrLeaseOwnerMismatch instead.
	ErrLeaseExpired = errors.New("store: lease expired")
	// ErrLeaseOwnerMismatch is returned when a caller tries to operate on a
	// lease it does not currently own.
	ErrLeaseOwnerMismatch = errors.New("store: lease owner mismatch")
	// ErrTerminalState is returned when an operation is attempted against a
	// job already in a terminal state (completed, dead_letter, cancelled).
	ErrTerminalState = errors.New("store: job already in terminal state")
	// ErrDuplicateDedupeKey is returned internally by Enqueue when an
	// in-flight job already holds the requested dedupe key; callers see the
	// existing job id instead of an error.
	ErrDuplicateDedupeKey = errors.New("store: dedupe key already active")
	// ErrNotDeadLettered is returned by RequeueDeadLetter when the job is not
	// currently sitting in its kind's dead letter list.
	ErrNotDeadLettered = errors.New("store: job is not dead-lettered")
)
