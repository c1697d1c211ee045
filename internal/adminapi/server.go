// Copyright 2025 James Ross

// Package adminapi exposes the thin external admin surface spec.md §6
// names: triggering scans, inspecting queue depth, and cancelling or
// requeuing individual jobs. Grounded on the teacher's internal/admin-api
// package (Server/NewServer/Start/Shutdown shape, middleware chaining order,
// audit logging), routed with gorilla/mux instead of the teacher's bare
// http.ServeMux since path parameters (/scan/library/{id}, /job/{id}/cancel)
// are first-class here rather than suffix-matched.
package adminapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reelvault/mediaserver/internal/config"
	"github.com/reelvault/mediaserver/internal/correlation"
	"github.com/reelvault/mediaserver/internal/library"
	"github.com/reelvault/mediaserver/internal/queue"
	"go.uber.org/zap"
)

// Server is the admin HTTP surface.
type Server struct {
	cfg         *config.Config
	queue       queue.Service
	libraries   *library.Registry
	log         *zap.Logger
	audit       *auditLogger
	correlation *correlation.Cache
	http        *http.Server
}

// NewServer builds the admin API server. When cfg.AdminAPI.AuditEnabled is
// set, it opens (creating if needed) the audit log file at construction
// time so a misconfigured path fails startup instead of the first mutating
// request.
func NewServer(cfg *config.Config, q queue.Service, libs *library.Registry, log *zap.Logger) (*Server, error) {
	var audit *auditLogger
	if cfg.AdminAPI.AuditEnabled {
		a, err := newAuditLogger(cfg.AdminAPI.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("admin api: %w", err)
		}
		audit = a
	}
	return &Server{cfg: cfg, queue: q, libraries: libs, log: log, audit: audit, correlation: correlation.New()}, nil
}

// Start builds the route table, wraps it in the middleware chain, and
// begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	handler := s.applyMiddleware(s.routes())
	s.http = &http.Server{
		Addr:         s.cfg.AdminAPI.ListenAddr,
		Handler:      handler,
		ReadTimeout:  s.cfg.AdminAPI.ReadTimeout,
		WriteTimeout: s.cfg.AdminAPI.WriteTimeout,
	}
	s.log.Info("starting admin api",
		zap.String("addr", s.cfg.AdminAPI.ListenAddr),
		zap.Bool("auth_enabled", s.cfg.AdminAPI.RequireAuth),
		zap.Bool("rate_limit_enabled", s.cfg.AdminAPI.RateLimitEnabled))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the audit log.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.audit != nil {
		_ = s.audit.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/scan/library/{id}", s.handleScanLibrary).Methods(http.MethodPost)
	r.HandleFunc("/scan/all", s.handleScanAll).Methods(http.MethodPost)
	r.HandleFunc("/scan/metrics", s.handleScanMetrics).Methods(http.MethodGet)
	r.HandleFunc("/job/{id}/cancel", s.handleCancelJob).Methods(http.MethodPost)
	r.HandleFunc("/job/{id}/requeue", s.handleRequeueJob).Methods(http.MethodPost)
	return r
}

// applyMiddleware wraps handler in reverse order so recovery sits outermost
// and auth innermost, mirroring the teacher's applyMiddleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	if s.cfg.AdminAPI.RequireAuth {
		handler = authMiddleware(s.cfg.AdminAPI.AuthToken, s.log)(handler)
	}
	if s.cfg.AdminAPI.RateLimitEnabled {
		handler = rateLimitMiddleware(s.cfg.AdminAPI.RateLimitPerSec)(handler)
	}
	if s.audit != nil {
		handler = auditMiddleware(s.audit, s.log)(handler)
	}
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(s.log)(handler)
	return handler
}
