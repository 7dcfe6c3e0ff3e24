// Package metrics provides Prometheus metrics for the avila-arrow runtime.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the runtime.
type Metrics struct {
	// Request metrics
	RequestsTotal     prometheus.Counter
	RequestsProcessed prometheus.Counter
	RequestsFailed    prometheus.Counter
	RequestLatency    prometheus.Histogram

	// Record batch metrics
	BatchesTotal prometheus.Counter
	BatchRows    prometheus.Histogram
	BatchBytes   prometheus.Histogram

	// System metrics
	InitStatus        prometheus.Gauge
	JobQueueSize      prometheus.Gauge
	WorkerPoolActive  prometheus.Gauge
	WorkerPoolPending prometheus.Gauge

	// Per-operation metrics
	ComputeOpsTotal   *prometheus.CounterVec
	ComputeOpDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of compute requests received",
		}),
		RequestsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_processed_total",
			Help:      "Total number of compute requests successfully processed",
		}),
		RequestsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Total number of failed compute requests",
		}),
		RequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Compute request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of record batches decoded",
		}),
		BatchRows: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_rows",
			Help:      "Number of rows per record batch",
			Buckets:   []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		BatchBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_bytes",
			Help:      "Serialized size of record batches in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		}),

		InitStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "initialized",
			Help:      "Whether the library lifecycle gate is open (1) or not (0)",
		}),
		JobQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_size",
			Help:      "Current number of queued compute jobs",
		}),
		WorkerPoolActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_pool_active",
			Help:      "Number of active workers",
		}),
		WorkerPoolPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_pool_pending",
			Help:      "Number of pending tasks in the worker pool",
		}),

		ComputeOpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_ops_total",
			Help:      "Total compute operations by op and status",
		}, []string{"op", "status"}),
		ComputeOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_op_duration_seconds",
			Help:      "Compute operation duration by op",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// RecordRequest records a compute request event.
func (m *Metrics) RecordRequest(success bool, duration time.Duration) {
	m.RequestsTotal.Inc()
	m.RequestLatency.Observe(duration.Seconds())
	if success {
		m.RequestsProcessed.Inc()
	} else {
		m.RequestsFailed.Inc()
	}
}

// RecordBatch records a decoded record batch.
func (m *Metrics) RecordBatch(rows int64, bytes int) {
	m.BatchesTotal.Inc()
	m.BatchRows.Observe(float64(rows))
	m.BatchBytes.Observe(float64(bytes))
}

// RecordComputeOp records a single compute operation.
func (m *Metrics) RecordComputeOp(op, status string, duration time.Duration) {
	m.ComputeOpsTotal.WithLabelValues(op, status).Inc()
	m.ComputeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetInitialized updates the lifecycle gate gauge.
func (m *Metrics) SetInitialized(initialized bool) {
	if initialized {
		m.InitStatus.Set(1)
	} else {
		m.InitStatus.Set(0)
	}
}

// UpdateJobQueueSize updates the job queue gauge.
func (m *Metrics) UpdateJobQueueSize(size int) {
	m.JobQueueSize.Set(float64(size))
}

// UpdateWorkerPool updates worker pool gauges.
func (m *Metrics) UpdateWorkerPool(active, pending int) {
	m.WorkerPoolActive.Set(float64(active))
	m.WorkerPoolPending.Set(float64(pending))
}

// MetricsServer runs an HTTP server exposing the /metrics endpoint.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics server on the given address.
func NewMetricsServer(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start starts the metrics server (blocking).
func (s *MetricsServer) Start() error {
	return s.server.ListenAndServe()
}

// StartAsync starts the metrics server in a goroutine.
func (s *MetricsServer) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop stops the metrics server.
func (s *MetricsServer) Stop() error {
	return s.server.Close()
}
