// Copyright 2025 James Ross
package store

import "fmt"

// keyspace centralizes Redis key construction under a configurable prefix,
// mirroring the teacher's pattern-based key naming for worker/heartbeat keys.
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = "scan"
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) raw() string {
	return k.prefix
}

func (k keyspace) job(id string) string {
	return fmt.Sprintf("%s:job:%s", k.prefix, id)
}

// ready holds a kind's jobs for a single library, scored for priority/age
// ordering. The scheduler picks a library first, then this zset gives strict
// priority+tie-break ordering within it.
func (k keyspace) ready(kind JobKind, libraryID string) string {
	return fmt.Sprintf("%s:ready:%s:%s", k.prefix, kind, libraryID)
}

// readyLibs indexes which libraries currently have at least one ready job of
// a kind, so the scheduler can enumerate fairness candidates without scanning
// every library's zset.
func (k keyspace) readyLibs(kind JobKind) string {
	return fmt.Sprintf("%s:readylibs:%s", k.prefix, kind)
}

func (k keyspace) deferred(kind JobKind) string {
	return fmt.Sprintf("%s:deferred:%s", k.prefix, kind)
}

func (k keyspace) pending(kind JobKind) string {
	return fmt.Sprintf("%s:pending:%s", k.prefix, kind)
}

func (k keyspace) leased(kind JobKind) string {
	return fmt.Sprintf("%s:leased:%s", k.prefix, kind)
}

func (k keyspace) deadLetter(kind JobKind) string {
	return fmt.Sprintf("%s:deadletter:%s", k.prefix, kind)
}

func (k keyspace) dedupe(dedupeKey string) string {
	return fmt.Sprintf("%s:dedupe:%s", k.prefix, dedupeKey)
}

// pendingKey holds every job id waiting on a given (library_id, key) fan-in.
// release_dependency atomically drains it.
func (k keyspace) pendingKey(libraryID, depKey string) string {
	return fmt.Sprintf("%s:pending_key:%s:%s", k.prefix, libraryID, depKey)
}

func (k keyspace) dequeueCounter(kind JobKind) string {
	return fmt.Sprintf("%s:dequeue_count:%s", k.prefix, kind)
}

func (k keyspace) cursor(libraryID string) string {
	return fmt.Sprintf("%s:cursor:%s", k.prefix, libraryID)
}
