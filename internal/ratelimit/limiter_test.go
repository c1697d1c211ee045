// Copyright 2025 James Ross
package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	l := New(0, 2)
	ctx := context.Background()

	release1, err := l.Acquire(ctx)
	require.NoError(t, err)
	release2, err := l.Acquire(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		release3, err := l.Acquire(ctx)
		require.NoError(t, err)
		release3()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("third acquire should have blocked until a slot freed")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	release2()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("third acquire never completed after release")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := New(0, 1)
	ctx := context.Background()
	_, err := l.Acquire(ctx)
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(cctx)
	require.Error(t, err)
}

func TestUnboundedLimiterNeverBlocks(t *testing.T) {
	l := New(0, 0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		release, err := l.Acquire(ctx)
		require.NoError(t, err)
		release()
	}
}
