// Copyright 2025 James Ross
package queue

import (
	"sync"

	"github.com/reelvault/mediaserver/internal/store"
)

// activeTracker counts in-flight (Leased) jobs per kind and library, the
// counts the scheduler's fairness ratio needs and which spec §4.3 says are
// "pulled from the Job Store, not passed in memory between dispatchers" —
// here the Queue Service plays that role since every lease/release passes
// through it. Lease-expiry resurrection (internal/reaper) cannot attribute
// a sweep to specific libraries without a per-library lease index, so it
// reports only an aggregate correction via dropKind; fairness briefly
// over-counts an affected kind's total until the next natural Complete/Fail.
type activeTracker struct {
	mu     sync.Mutex
	byKind map[store.JobKind]map[string]int
	global map[store.JobKind]int
}

func newActiveTracker() *activeTracker {
	return &activeTracker{
		byKind: make(map[store.JobKind]map[string]int),
		global: make(map[store.JobKind]int),
	}
}

func (t *activeTracker) inc(kind store.JobKind, library string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byKind[kind] == nil {
		t.byKind[kind] = make(map[string]int)
	}
	t.byKind[kind][library]++
	t.global[kind]++
}

func (t *activeTracker) dec(kind store.JobKind, library string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.byKind[kind]; m != nil && m[library] > 0 {
		m[library]--
	}
	if t.global[kind] > 0 {
		t.global[kind]--
	}
}

func (t *activeTracker) dropKind(kind store.JobKind, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.global[kind] -= n
	if t.global[kind] < 0 {
		t.global[kind] = 0
	}
}

func (t *activeTracker) libraryCount(kind store.JobKind, library string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKind[kind][library]
}

func (t *activeTracker) globalCount(kind store.JobKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global[kind]
}
