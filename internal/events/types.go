// Copyright 2025 James Ross
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/mediaserver/internal/store"
)

// JobEventType enumerates the job lifecycle events spec §4.7 names.
type JobEventType string

const (
	JobEnqueued     JobEventType = "job_enqueued"
	JobLeased       JobEventType = "job_leased"
	JobRenewed      JobEventType = "job_renewed"
	JobCompleted    JobEventType = "job_completed"
	JobFailed       JobEventType = "job_failed"
	JobDeadLettered JobEventType = "job_dead_lettered"
	JobCancelled    JobEventType = "job_cancelled"
)

// JobEvent is published on every job lifecycle transition.
type JobEvent struct {
	Type          JobEventType
	JobID         uuid.UUID
	Kind          store.JobKind
	LibraryID     string
	CorrelationID uuid.UUID
	Attempt       int
	Timestamp     time.Time
}

// ScanEventType enumerates the coarse scan progress events spec §4.7 names.
type ScanEventType string

const (
	ScanStarted   ScanEventType = "scan_started"
	FolderScanned ScanEventType = "folder_scanned"
	MediaIndexed  ScanEventType = "media_indexed"
	ScanFinished  ScanEventType = "scan_finished"
)

// ScanEvent is published on coarse-grained library scan progress.
type ScanEvent struct {
	Type      ScanEventType
	LibraryID string
	Detail    string
	Timestamp time.Time
}
