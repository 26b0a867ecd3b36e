package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FranksOps/pulse/internal/source"
)

var (
	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_ingest_requests_total",
			Help: "Total number of ingestion dispatches, by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	IngestRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_ingest_retries_total",
			Help: "Total number of retried ingestion attempts",
		},
		[]string{"kind"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_ingest_duration_seconds",
			Help:    "Duration of ingestion calls in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_search_requests_total",
			Help: "Total number of search provider calls",
		},
		[]string{"status"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_runs_total",
			Help: "Total number of orchestrator runs by final status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_run_duration_seconds",
			Help:    "Wall-clock duration of orchestrator runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
)

// RecordIngest updates the ingestion metrics for one dispatched call.
func RecordIngest(kind source.Kind, res source.IngestionResult, d time.Duration) {
	IngestRequestsTotal.WithLabelValues(string(kind), strconv.FormatBool(res.OK)).Inc()
	IngestDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// RecordSearch updates the search call counter.
func RecordSearch(ok bool) {
	SearchRequestsTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// RecordRun updates the run counters.
func RecordRun(status string, d time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(d.Seconds())
}
