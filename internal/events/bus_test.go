// Copyright 2025 James Ross
package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/mediaserver/internal/store"
	"github.com/stretchr/testify/require"
)

func TestPublishJobFansOutToAllSubscribers(t *testing.T) {
	b := NewBus()
	ch1, unsub1 := b.SubscribeJobs()
	defer unsub1()
	ch2, unsub2 := b.SubscribeJobs()
	defer unsub2()

	evt := JobEvent{Type: JobCompleted, JobID: uuid.New(), Kind: store.KindAnalyze}
	b.PublishJob(evt)

	select {
	case got := <-ch1:
		require.Equal(t, evt.JobID, got.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on subscriber 1")
	}
	select {
	case got := <-ch2:
		require.Equal(t, evt.JobID, got.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on subscriber 2")
	}
}

func TestPublishJobDropsOnFullBuffer(t *testing.T) {
	b := NewBus()
	_, unsub := b.SubscribeJobs()
	defer unsub()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.PublishJob(JobEvent{Type: JobEnqueued})
	}
	// No assertion on the drop counter's absolute value since it's process
	// global; this just exercises the non-blocking path without deadlock.
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.SubscribeJobs()
	unsub()

	_, open := <-ch
	require.False(t, open)
}

func TestCloseShutsDownAllSubscribers(t *testing.T) {
	b := NewBus()
	jobCh, _ := b.SubscribeJobs()
	scanCh, _ := b.SubscribeScans()

	b.Close()

	_, open := <-jobCh
	require.False(t, open)
	_, open = <-scanCh
	require.False(t, open)

	// Publishing after close must not panic.
	b.PublishJob(JobEvent{Type: JobEnqueued})
	b.PublishScan(ScanEvent{Type: ScanStarted})
}
