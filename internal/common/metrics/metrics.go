// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	NLUDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_decisions_total",
			Help: "Routing decisions by label",
		},
		[]string{"decision"},
	)

	// NLURecoveries counts recovery outcomes. suffix is the closure that
	// succeeded, "none" when nothing did.
	NLURecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_recovery_total",
			Help: "Structured output recovery attempts by outcome",
		},
		[]string{"outcome", "suffix"},
	)

	NLUFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_fallbacks_total",
			Help: "Results replaced by a fallback, by fallback intent",
		},
		[]string{"intent"},
	)

	NLUContractViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_contract_violations_total",
			Help: "Results missing a required entity, by intent",
		},
		[]string{"intent"},
	)

	NLUPipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlu_pipeline_duration_seconds",
			Help:    "Time from raw generated text to decision",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
	)

	ModelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlu_model_request_duration_seconds",
			Help:    "Model inference request latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"status"},
	)

	DispatchedDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_dispatch_total",
			Help: "Decision envelopes delivered per target",
		},
		[]string{"target", "status"},
	)
)
