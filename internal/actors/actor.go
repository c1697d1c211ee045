// Copyright 2025 James Ross

// Package actors implements the five job-kind behaviors of spec §4.5:
// FolderScan, Analyze, MetadataEnrich, Index, ImageFetch. Each actor is a
// narrow function from an immutable Command to an Outcome, with external
// collaborators (filesystem, metadata provider, catalog, image cache)
// injected as interfaces so the dispatcher can run them against fakes in
// tests. Grounded on the teacher's worker package, which keeps its job
// handler pure and lets the worker loop own retries, leasing and event
// emission around it.
package actors

import (
	"context"
	"errors"

	"github.com/reelvault/mediaserver/internal/store"
)

// ErrClass names one of the fixed error classes spec §4.5 assigns per actor.
// The dispatcher maps these to retryable/fatal via Retryable.
type ErrClass string

// ActorError carries an error class alongside the underlying cause so the
// dispatcher can decide retry vs dead-letter without string matching.
type ActorError struct {
	Class     ErrClass
	Retryable bool
	Poison    bool // forces the kind's circuit breaker open; see spec §7
	Cause     error
}

func (e *ActorError) Error() string {
	if e.Cause != nil {
		return string(e.Class) + ": " + e.Cause.Error()
	}
	return string(e.Class)
}

func (e *ActorError) Unwrap() error { return e.Cause }

// NewError builds a retryable or fatal ActorError for class.
func NewError(class ErrClass, retryable bool, cause error) *ActorError {
	return &ActorError{Class: class, Retryable: retryable, Cause: cause}
}

// NewPoisonError builds a fatal ActorError that also demands the kind's
// worker pool pause until an operator intervenes.
func NewPoisonError(class ErrClass, cause error) *ActorError {
	return &ActorError{Class: class, Retryable: false, Poison: true, Cause: cause}
}

// FollowUp is a job an actor wants enqueued as a consequence of its own
// completion. The dispatcher translates these into queue.EnqueueRequest
// values paired with the actor's own completion.
type FollowUp struct {
	Kind          store.JobKind
	LibraryID     string
	Priority      store.Priority
	DedupeKey     string
	DependencyKey string
	Payload       []byte
}

// Outcome is what an actor returns on success: zero or more follow-up jobs,
// and optionally a dependency key to release now that this job resolved it
// (e.g. MetadataEnrich resolving a series).
type Outcome struct {
	FollowUps        []FollowUp
	ReleaseLibraryID string
	ReleaseKey       string
	ScanProgressNote string // surfaced as a ScanEvent detail by the dispatcher
}

// Command is the immutable input an actor receives, derived from a leased
// job. Actors never see the Job or touch the store directly.
type Command struct {
	JobID         string
	Kind          store.JobKind
	LibraryID     string
	Attempt       int
	DependencyKey string
	Payload       []byte
}

// Actor executes one job kind. Implementations must be safe to cancel via
// ctx at any suspension point; partial external effects are tolerated only
// when idempotent.
type Actor interface {
	Execute(ctx context.Context, cmd Command) (Outcome, error)
}

// ErrUnsupportedKind is returned by a Table lookup for a kind with no
// registered actor.
var ErrUnsupportedKind = errors.New("actors: unsupported job kind")

// Table routes a job kind to its Actor, used by the dispatcher to build one
// worker pool per kind.
type Table map[store.JobKind]Actor

func (t Table) Lookup(kind store.JobKind) (Actor, error) {
	a, ok := t[kind]
	if !ok {
		return nil, ErrUnsupportedKind
	}
	return a, nil
}
