// Copyright 2025 James Ross
package store

import (
	"time"

	"github.com/google/uuid"
)

// JobKind identifies which actor a job routes to.
type JobKind string

const (
	KindFolderScan     JobKind = "folder_scan"
	KindAnalyze        JobKind = "analyze"
	KindMetadataEnrich JobKind = "metadata_enrich"
	KindIndex          JobKind = "index"
	KindImageFetch     JobKind = "image_fetch"
)

// AllKinds lists every job kind in pipeline order, used by components that
// need to iterate every queue (the snapshot sampler, admin listing, dispatcher
// bring-up).
var AllKinds = []JobKind{KindFolderScan, KindAnalyze, KindMetadataEnrich, KindIndex, KindImageFetch}

// State is a job's position in its lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateReady      State = "ready"
	StateLeased     State = "leased"
	StateDeferred   State = "deferred"
	StateFailed     State = "failed"
	StateCompleted  State = "completed"
	StateDeadLetter State = "dead_letter"
	StateCancelled  State = "cancelled"
)

// Priority orders ready jobs of the same kind within a library. Lower value
// dequeues first.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityNormal Priority = 5
	PriorityLow    Priority = 10
)

// Job is the orchestrator's unit of work. It is persisted as a Redis hash and
// rehydrated verbatim by the store; actors never see anything else.
type Job struct {
	ID            uuid.UUID
	Kind          JobKind
	State         State
	LibraryID     string
	Priority      Priority
	Payload       []byte // actor-specific JSON, opaque to the store
	DedupeKey     string
	DependencyKey string
	CorrelationID uuid.UUID
	Attempts      int
	MaxAttempts   int
	NotBefore     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LeaseOwner    string
	LeaseExpiry   time.Time
	LastError     string
}

// Ready reports whether a job can be dequeued right now.
func (j Job) Ready() bool {
	return j.State == StateReady && !j.NotBefore.After(time.Now())
}
