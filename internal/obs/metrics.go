// Copyright 2025 James Ross
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_enqueued_total",
		Help: "Total number of jobs enqueued, by kind",
	}, []string{"kind"})
	JobsDeduped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_deduped_total",
		Help: "Total number of enqueue calls short-circuited by an active dedupe key",
	}, []string{"kind"})
	JobsDequeued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_dequeued_total",
		Help: "Total number of jobs leased by a worker, by kind",
	}, []string{"kind"})
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_completed_total",
		Help: "Total number of jobs completed, by kind",
	}, []string{"kind"})
	JobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_failed_total",
		Help: "Total number of retryable job failures, by kind",
	}, []string{"kind"})
	JobsRetried = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_retried_total",
		Help: "Total number of jobs requeued after a retryable failure, by kind",
	}, []string{"kind"})
	JobsDeadLetter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_dead_letter_total",
		Help: "Total number of jobs moved to the dead letter state, by kind",
	}, []string{"kind"})
	JobsCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_jobs_cancelled_total",
		Help: "Total number of jobs cancelled, by kind",
	}, []string{"kind"})
	JobProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scan_job_processing_duration_seconds",
		Help:    "Histogram of actor execution durations, by kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scan_queue_depth",
		Help: "Current number of jobs in a given kind/state bucket",
	}, []string{"kind", "state"})
	DequeueRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scan_dequeue_rate_per_minute",
		Help: "Rolling dequeue rate sampled by the queue snapshot, by kind",
	}, []string{"kind"})
	LeaseExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_lease_expired_total",
		Help: "Total number of leases resurrected by the lease expiry scanner",
	})
	DependencyReleasedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_dependency_released_total",
		Help: "Total number of dependent jobs transitioned Pending to Ready by release_dependency",
	})
	DispatcherPauseState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scan_dispatcher_pause_state",
		Help: "1 if the dispatcher for this kind is paused (poison-classed or breaker-open), else 0",
	}, []string{"kind"})
	EventBusDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_event_bus_dropped_total",
		Help: "Total number of events dropped because a subscriber's channel was full",
	}, []string{"topic"})
	CorrelationCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_correlation_cache_misses_total",
		Help: "Total number of correlation lookups that had to mint a fresh id",
	})
)

func init() {
	prometheus.MustRegister(
		JobsEnqueued, JobsDeduped, JobsDequeued, JobsCompleted, JobsFailed,
		JobsRetried, JobsDeadLetter, JobsCancelled, JobProcessingDuration,
		QueueDepth, DequeueRate, LeaseExpiredTotal, DependencyReleasedTotal,
		DispatcherPauseState, EventBusDropped, CorrelationCacheMisses,
	)
}
