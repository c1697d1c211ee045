// Copyright 2025 James Ross
package store

// KindSnapshot holds a point-in-time count of jobs of one kind in each
// queue bucket, plus a rolling dequeue rate.
type KindSnapshot struct {
	Ready            int
	Leased           int
	Deferred         int
	Pending          int
	DeadLetter       int
	DequeuePerMinute float64
}

// QueueSnapshot is the result of a Snapshot call, keyed by job kind. The
// observability package samples this on an interval to populate gauges.
type QueueSnapshot struct {
	ByKind map[JobKind]KindSnapshot
}
