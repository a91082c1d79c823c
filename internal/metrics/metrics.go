// Package metrics exposes Prometheus collectors for the HTTP surface, the
// row streams and the export workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route pattern and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restables_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests, streaming included.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restables_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// RowsStreamed counts data rows written to clients and export files.
	RowsStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restables_rows_streamed_total",
			Help: "Total number of table rows streamed",
		},
		[]string{"connection", "format"},
	)
	// ActiveStreams is the number of open result cursors.
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "restables_active_streams",
			Help: "Number of result streams currently open",
		},
	)
	// ExportJobs counts finished export jobs by outcome.
	ExportJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restables_export_jobs_total",
			Help: "Total number of export jobs by final status",
		},
		[]string{"status"},
	)
	// ExportQueueDepth is the number of jobs waiting for a worker.
	ExportQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "restables_export_queue_depth",
			Help: "Number of export jobs waiting in the queue",
		},
	)
)
