// Copyright 2025 James Ross

// Package correlation keeps an in-memory map from job id to correlation id;
// the admin API uses it to remember which admin request enqueued a job.
// Grounded on the teacher's exactly-once idempotency cache shape (a sync.Map
// keyed by id) rather than the teacher's event-hooks correlation fields,
// since this cache is purely in-memory bookkeeping with no delivery
// semantics of its own.
package correlation

import (
	"sync"

	"github.com/google/uuid"
	"github.com/reelvault/mediaserver/internal/ids"
	"github.com/reelvault/mediaserver/internal/obs"
)

// Cache maps a job id to the correlation id recorded for it.
// It is self-healing: a lookup miss mints a fresh id rather than failing,
// since losing a correlation id should degrade logs, not break the job.
type Cache struct {
	entries sync.Map // uuid.UUID -> uuid.UUID
}

// New constructs an empty correlation cache.
func New() *Cache {
	return &Cache{}
}

// Set records the correlation id for jobID, overwriting any prior value.
func (c *Cache) Set(jobID, correlationID uuid.UUID) {
	c.entries.Store(jobID, correlationID)
}

// Get returns the correlation id for jobID, minting and recording a fresh
// one on miss.
func (c *Cache) Get(jobID uuid.UUID) uuid.UUID {
	if v, ok := c.entries.Load(jobID); ok {
		return v.(uuid.UUID)
	}
	obs.CorrelationCacheMisses.Inc()
	fresh := ids.New()
	c.entries.Store(jobID, fresh)
	return fresh
}

// Forget removes jobID's entry. Nothing outside this package's tests calls
// it, so entries are not removed on terminal transitions and the cache keeps
// every entry until the process exits.
func (c *Cache) Forget(jobID uuid.UUID) {
	c.entries.Delete(jobID)
}
