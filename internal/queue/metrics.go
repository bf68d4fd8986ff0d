package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paas_jobs_enqueued_total",
			Help: "Total number of jobs accepted onto a queue",
		},
		[]string{"kind"},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paas_jobs_total",
			Help: "Total number of finished jobs by outcome",
		},
		[]string{"kind", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paas_job_duration_seconds",
			Help:    "Job run time including retries",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	jobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paas_jobs_active",
			Help: "Number of jobs currently running",
		},
		[]string{"kind"},
	)

	jobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paas_job_retries_total",
			Help: "Total number of job attempts that were retried",
		},
		[]string{"kind"},
	)
)
