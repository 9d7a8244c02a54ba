// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Requests processed by the pipeline, by final status",
		},
		[]string{"status", "input_type"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_request_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	TaskExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_task_executions_total",
			Help: "Task executions by task type and outcome",
		},
		[]string{"task_type", "outcome"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assistant_task_duration_seconds",
			Help: "Task execution duration in seconds",
		},
		[]string{"task_type"},
	)

	CostAccrued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_cost_accrued_total",
			Help: "Actual cost added to session totals",
		},
		[]string{"task_type"},
	)

	CostEstimated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_cost_estimated_total",
			Help: "Projected cost computed before execution",
		},
		[]string{"task_type"},
	)

	CostAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_cost_anomalies_total",
			Help: "Estimates requested for task types without pricing",
		},
		[]string{"task_type"},
	)

	Clarifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_clarifications_total",
			Help: "Clarification round-trips by stage",
		},
		[]string{"stage"}, // asked | resumed | expired | not_found
	)

	SessionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_session_operations_total",
			Help: "Session store operations by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
