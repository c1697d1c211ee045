// Copyright 2025 James Ross
package breaker

import (
	"testing"
	"time"
)

func TestTripManualBlocksUntilResetRegardlessOfCooldown(t *testing.T) {
	cb := New(time.Second, time.Millisecond, 0.5, 1)
	cb.TripManual()
	if cb.Allow() {
		t.Fatal("expected manual trip to block Allow")
	}
	time.Sleep(10 * time.Millisecond) // well past cooldown
	if cb.Allow() {
		t.Fatal("manual trip must not auto-recover via cooldown")
	}
	cb.Record(true)
	if cb.State() != Open {
		t.Fatal("Record must not clear a manual trip")
	}
	cb.ResetManual()
	if cb.State() != Closed {
		t.Fatal("expected closed after manual reset")
	}
	if !cb.Allow() {
		t.Fatal("expected allow after manual reset")
	}
}
