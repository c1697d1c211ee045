// Copyright 2025 James Ross

// Package ratelimit implements the process-wide MetadataEnrich provider
// throttle: a QPS token bucket plus a bounded concurrency gate. Built
// explicitly as a value the metadata dispatcher owns and passes down to its
// actor, per the design note that this limiter must be an
// explicit configuration-initialized value, not an ambient global. Grounded
// on golang.org/x/time/rate, the token-bucket library already in the
// teacher's dependency pack for its own request throttling.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter bounds calls to an external collaborator by both rate and
// concurrency.
type Limiter struct {
	qps  *rate.Limiter
	sema chan struct{}
}

// New builds a Limiter allowing at most maxQPS requests per second with at
// most maxConcurrency in flight at once. A maxQPS of zero disables the rate
// bucket (unlimited rate, concurrency gate still applies); a maxConcurrency
// of zero disables the concurrency gate.
func New(maxQPS float64, maxConcurrency int) *Limiter {
	l := &Limiter{}
	if maxQPS > 0 {
		l.qps = rate.NewLimiter(rate.Limit(maxQPS), max(1, int(maxQPS)))
	}
	if maxConcurrency > 0 {
		l.sema = make(chan struct{}, maxConcurrency)
	}
	return l
}

// Acquire blocks until both the rate bucket and the concurrency gate admit
// the caller, or ctx is cancelled. The returned release func must be called
// exactly once to free the concurrency slot.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if l.qps != nil {
		if err := l.qps.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if l.sema == nil {
		return func() {}, nil
	}
	select {
	case l.sema <- struct{}{}:
		return func() { <-l.sema }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// KeyedGate bounds concurrency per key (e.g. a storage device) instead of
// process-wide, lazily creating one bounded channel per key seen.
type KeyedGate struct {
	maxPerKey int
	mu        sync.Mutex
	gates     map[string]chan struct{}
}

// NewKeyedGate builds a KeyedGate allowing at most maxPerKey concurrent
// holders of any single key. A maxPerKey of zero disables the gate (every
// Acquire succeeds immediately).
func NewKeyedGate(maxPerKey int) *KeyedGate {
	return &KeyedGate{maxPerKey: maxPerKey, gates: make(map[string]chan struct{})}
}

// Acquire blocks until a slot for key is free or ctx is cancelled. The
// returned release func must be called exactly once to free the slot.
func (g *KeyedGate) Acquire(ctx context.Context, key string) (release func(), err error) {
	if g == nil || g.maxPerKey <= 0 || key == "" {
		return func() {}, nil
	}
	g.mu.Lock()
	sema, ok := g.gates[key]
	if !ok {
		sema = make(chan struct{}, g.maxPerKey)
		g.gates[key] = sema
	}
	g.mu.Unlock()

	select {
	case sema <- struct{}{}:
		return func() { <-sema }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
