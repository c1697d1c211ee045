// Copyright 2025 James Ross
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/reelvault/mediaserver/internal/ids"
	"github.com/reelvault/mediaserver/internal/queue"
	"github.com/reelvault/mediaserver/internal/store"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, class, message, correlationID string) {
	writeJSON(w, status, errorEnvelope{Class: class, Message: message, CorrelationID: correlationID})
}

func (s *Server) errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrNotDeadLettered):
		return http.StatusConflict, "not_dead_lettered"
	case errors.Is(err, store.ErrTerminalState):
		return http.StatusConflict, "terminal_state"
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// handleScanLibrary enqueues a single high-priority FolderScan for one
// configured library, deduplicating repeated clicks onto the same
// in-flight scan.
func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["id"]
	lib, ok := s.libraries.Get(libraryID)
	if !ok {
		writeError(w, http.StatusNotFound, "library_not_found", "unknown library id", requestIDFromContext(r.Context()))
		return
	}

	handle, err := s.enqueueFolderScan(r.Context(), lib.ID, lib.RootPaths)
	if err != nil {
		status, class := s.errorStatus(err)
		writeError(w, status, class, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	corrID := s.linkRequestCorrelation(r.Context(), handle.JobID)
	writeJSON(w, http.StatusAccepted, scanLibraryResponse{JobID: handle.JobID.String(), Deduped: handle.Deduped, CorrelationID: corrID})
}

// linkRequestCorrelation remembers which admin request caused a job to be
// enqueued, so an operator following up on "job X" can trace it back to the
// request that triggered it.
func (s *Server) linkRequestCorrelation(ctx context.Context, jobID uuid.UUID) string {
	reqID, err := uuid.Parse(requestIDFromContext(ctx))
	if err != nil {
		return ""
	}
	s.correlation.Set(jobID, reqID)
	return reqID.String()
}

// handleScanAll enqueues one FolderScan per enabled library.
func (s *Server) handleScanAll(w http.ResponseWriter, r *http.Request) {
	libs := s.libraries.Enabled()
	entries := make([]scanAllEntry, 0, len(libs))
	for _, lib := range libs {
		handle, err := s.enqueueFolderScan(r.Context(), lib.ID, lib.RootPaths)
		if err != nil {
			s.log.Error("scan-all failed to enqueue library", zap.Error(err))
			continue
		}
		corrID := s.linkRequestCorrelation(r.Context(), handle.JobID)
		entries = append(entries, scanAllEntry{LibraryID: lib.ID, JobID: handle.JobID.String(), Deduped: handle.Deduped, CorrelationID: corrID})
	}
	writeJSON(w, http.StatusAccepted, scanAllResponse{Libraries: entries})
}

func (s *Server) enqueueFolderScan(ctx context.Context, libraryID string, rootPaths []string) (queue.JobHandle, error) {
	payload, err := json.Marshal(actors.FolderScanPayload{RootPaths: rootPaths})
	if err != nil {
		return queue.JobHandle{}, err
	}
	return s.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:      store.KindFolderScan,
		LibraryID: libraryID,
		Priority:  store.PriorityHigh,
		DedupeKey: "admin_scan:" + libraryID,
		Payload:   payload,
	})
}

// handleScanMetrics reports the current queue snapshot plus the
// concurrency config an operator needs to interpret it.
func (s *Server) handleScanMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.queue.Snapshot(r.Context())
	if err != nil {
		status, class := s.errorStatus(err)
		writeError(w, status, class, err.Error(), requestIDFromContext(r.Context()))
		return
	}

	kinds := make(map[string]kindMetrics, len(snap.ByKind))
	activeScans := 0
	for kind, ks := range snap.ByKind {
		kinds[string(kind)] = kindMetrics{
			Ready: ks.Ready, Leased: ks.Leased, Deferred: ks.Deferred,
			Pending: ks.Pending, DeadLetter: ks.DeadLetter, DequeuePerMinute: ks.DequeuePerMinute,
		}
		if kind == store.KindFolderScan {
			activeScans = ks.Leased
		}
	}

	writeJSON(w, http.StatusOK, scanMetricsResponse{
		Timestamp:   time.Now(),
		Kinds:       kinds,
		ActiveScans: activeScans,
		Config:      s.configSummary(),
	})
}

func (s *Server) configSummary() scanMetricsConfigSummary {
	c := s.cfg
	return scanMetricsConfigSummary{
		MaxParallelScans:    c.Concurrency.MaxParallelScans,
		MaxParallelAnalyses: c.Concurrency.MaxParallelAnalyses,
		MaxParallelMetadata: c.Concurrency.MaxParallelMetadata,
		MaxParallelIndex:    c.Concurrency.MaxParallelIndex,
		MaxParallelFetch:    c.Concurrency.MaxParallelImageFetch,
		LibraryScanLimit:    c.Budget.LibraryScanLimit,
	}
}

// handleCancelJob cancels a job regardless of its current state, a no-op if
// it has already reached a terminal state.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := ids.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_job_id", "job id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	if err := s.queue.CancelJob(r.Context(), jobID); err != nil {
		status, class := s.errorStatus(err)
		writeError(w, status, class, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRequeueJob pulls a dead-lettered job back to ready, for an operator
// who has fixed whatever made it fail forever (spec.md §7's "operator
// re-enqueue" path).
func (s *Server) handleRequeueJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := ids.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_job_id", "job id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	if err := s.queue.RequeueDeadLetter(r.Context(), jobID); err != nil {
		status, class := s.errorStatus(err)
		writeError(w, status, class, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
