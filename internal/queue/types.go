// Copyright 2025 James Ross
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/mediaserver/internal/store"
)

// EnqueueRequest is the Go-native translation of spec's EnqueueRequest.
type EnqueueRequest struct {
	Kind          store.JobKind
	LibraryID     string
	Priority      store.Priority
	DedupeKey     string
	DependencyKey string
	Payload       []byte
	MaxAttempts   int
	NotBefore     time.Time
}

// JobHandle is the result of enqueue/enqueue_many.
type JobHandle struct {
	JobID   uuid.UUID
	Deduped bool
}

// Selector narrows dequeue to a specific library/priority bias, per spec's
// DequeueRequest.selector field. A nil selector lets the scheduler's
// fairness ranking choose freely among all ready libraries.
type Selector struct {
	LibraryID string
	Priority  *store.Priority
}

// JobLease is the Go-native translation of spec's JobLease: a leased job
// plus the lease metadata a worker needs to renew, complete, or fail it.
// There is no separate LeaseId in this implementation — the (JobID, Kind,
// WorkerID) triple plays that role, since the store identifies a lease by
// the job it belongs to.
type JobLease struct {
	JobID         uuid.UUID
	Kind          store.JobKind
	LibraryID     string
	Priority      store.Priority
	Payload       []byte
	DependencyKey string
	Attempts      int
	MaxAttempts   int
	WorkerID      string
	LeaseExpiry   time.Time
	CorrelationID uuid.UUID
}

func leaseFromJob(j *store.Job, workerID string) *JobLease {
	return &JobLease{
		JobID:         j.ID,
		Kind:          j.Kind,
		LibraryID:     j.LibraryID,
		Priority:      j.Priority,
		Payload:       j.Payload,
		DependencyKey: j.DependencyKey,
		Attempts:      j.Attempts,
		MaxAttempts:   j.MaxAttempts,
		WorkerID:      workerID,
		LeaseExpiry:   j.LeaseExpiry,
		CorrelationID: j.CorrelationID,
	}
}
