package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "notetasks"

	jobsTotal               = "jobs_total"
	jobRetriesTotal         = "job_retries_total"
	extractionDuration      = "extraction_duration_seconds"
	tasksExtractedTotal     = "tasks_extracted_total"
	backendInfo             = "backend_info"
	cleanupDeletedJobsTotal = "cleanup_deleted_jobs_total"

	// Labels
	statusLabel  = "status"
	backendLabel = "backend"
)

/**
* Metrics definition
**/
var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      jobsTotal,
		Help:      "number of jobs that reached a terminal status",
	},
	[]string{statusLabel},
)

var jobRetriesTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      jobRetriesTotal,
		Help:      "number of scheduled job retries",
	},
)

var extractionDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      extractionDuration,
		Help:      "time spent in backend extraction and normalization",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{backendLabel},
)

var tasksExtractedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      tasksExtractedTotal,
		Help:      "number of tasks accepted from extraction",
	},
	[]string{backendLabel},
)

var backendInfoMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      backendInfo,
		Help:      "active ocr backend (1 for the selected kind)",
	},
	[]string{backendLabel},
)

var cleanupDeletedJobsTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      cleanupDeletedJobsTotal,
		Help:      "number of jobs removed by retention cleanup",
	},
)

func IncreaseJobsTotalMetric(status string) {
	jobsTotalMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func IncreaseJobRetriesMetric() {
	jobRetriesTotalMetric.Inc()
}

func ObserveExtractionDuration(backend string, seconds float64) {
	extractionDurationMetric.With(prometheus.Labels{backendLabel: backend}).Observe(seconds)
}

func AddTasksExtracted(backend string, n int) {
	tasksExtractedTotalMetric.With(prometheus.Labels{backendLabel: backend}).Add(float64(n))
}

// SetActiveBackend marks backend as the active kind.
func SetActiveBackend(backend string) {
	backendInfoMetric.Reset()
	backendInfoMetric.With(prometheus.Labels{backendLabel: backend}).Set(1)
}

func AddCleanupDeletedJobs(n int) {
	cleanupDeletedJobsTotalMetric.Add(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(jobRetriesTotalMetric)
	prometheus.MustRegister(extractionDurationMetric)
	prometheus.MustRegister(tasksExtractedTotalMetric)
	prometheus.MustRegister(backendInfoMetric)
	prometheus.MustRegister(cleanupDeletedJobsTotalMetric)
}
