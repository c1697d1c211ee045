// Copyright 2025 James Ross
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/reelvault/mediaserver/internal/breaker"
	"github.com/reelvault/mediaserver/internal/config"
	"github.com/reelvault/mediaserver/internal/events"
	"github.com/reelvault/mediaserver/internal/queue"
	"github.com/reelvault/mediaserver/internal/store"
	"go.uber.org/zap"
)

// Manager owns one Pool per job kind and the per-kind breaker that backs
// its poison-pause behavior.
type Manager struct {
	pools    map[store.JobKind]*Pool
	breakers map[store.JobKind]*breaker.CircuitBreaker
}

// NewManager builds a pool per kind in table, sized from cfg.Concurrency.
func NewManager(cfg *config.Config, q queue.Service, table actors.Table, bus *events.Bus, log *zap.Logger) *Manager {
	m := &Manager{
		pools:    make(map[store.JobKind]*Pool),
		breakers: make(map[store.JobKind]*breaker.CircuitBreaker),
	}
	for kind, actor := range table {
		cb := breaker.New(30*time.Second, 15*time.Second, 0.5, 5)
		m.breakers[kind] = cb
		poolCfg := PoolConfig{
			Kind:          kind,
			WorkerCount:   workerCount(cfg, kind),
			LeaseTTL:      cfg.Lease.LeaseTTL,
			RenewFraction: cfg.Lease.RenewFraction,
		}
		m.pools[kind] = NewPool(poolCfg, q, actor, bus, cb, log, "orchestrator")
	}
	return m
}

func workerCount(cfg *config.Config, kind store.JobKind) int {
	switch kind {
	case store.KindFolderScan:
		return cfg.Concurrency.MaxParallelScans
	case store.KindAnalyze:
		return cfg.Concurrency.MaxParallelAnalyses
	case store.KindMetadataEnrich:
		return cfg.Concurrency.MaxParallelMetadata
	case store.KindIndex:
		return cfg.Concurrency.MaxParallelIndex
	case store.KindImageFetch:
		return cfg.Concurrency.MaxParallelImageFetch
	default:
		return 1
	}
}

// Run starts every registered pool and blocks until ctx is cancelled and
// all pools have exited.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range m.pools {
		wg.Add(1)
		pool := p
		go func() {
			defer wg.Done()
			pool.Run(ctx)
		}()
	}
	wg.Wait()
}

// Breaker returns the circuit breaker backing kind's pool. ResetManual on it
// is what clears a poison trip; no admin API route calls it.
func (m *Manager) Breaker(kind store.JobKind) (*breaker.CircuitBreaker, bool) {
	cb, ok := m.breakers[kind]
	return cb, ok
}
