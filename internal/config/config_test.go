// Copyright 2025 James Ross
package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("SCAN_CONCURRENCY_MAX_PARALLEL_SCANS")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Concurrency.MaxParallelScans != 4 {
		t.Fatalf("expected default max_parallel_scans 4, got %d", cfg.Concurrency.MaxParallelScans)
	}
	if cfg.Redis.Addr == "" {
		t.Fatalf("expected default redis addr")
	}
	if cfg.Retry.FastRetryFactor != 4 {
		t.Fatalf("expected default fast_retry_factor 4, got %v", cfg.Retry.FastRetryFactor)
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Concurrency.MaxParallelScans = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for max_parallel_scans < 1")
	}

	cfg = defaultConfig()
	cfg.Lease.LeaseTTL = 3 * 1e9 // 3s
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for lease ttl < 5s")
	}

	cfg = defaultConfig()
	cfg.Lease.SweepInterval = cfg.Lease.LeaseTTL * 2
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for sweep_interval > lease_ttl")
	}

	cfg = defaultConfig()
	cfg.Retry.BackoffMaxMs = cfg.Retry.BackoffBaseMs / 2
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for backoff_max_ms < backoff_base_ms")
	}

	cfg = defaultConfig()
	cfg.MetadataLimits.MaxQPS = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for max_qps <= 0")
	}
}
