package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Index metrics
	IndexSyncTotal       *prometheus.CounterVec
	IndexSyncDuration    *prometheus.HistogramVec
	IndexEdgesReplaced   prometheus.Counter
	IndexEntriesRepaired prometheus.Counter

	// Search metrics
	SearchRequestsTotal  *prometheus.CounterVec
	SearchDuration       prometheus.Histogram
	SearchCandidateCount prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	BlocksTotal    prometheus.Gauge
	DocumentsTotal prometheus.Gauge
	EdgesTotal     prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blockindex_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blockindex_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blockindex_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "backend", "error_type"},
		),

		IndexSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_index_sync_total",
				Help: "Total number of index synchronization runs",
			},
			[]string{"result"},
		),
		IndexSyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blockindex_index_sync_duration_seconds",
				Help:    "Index synchronization duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		IndexEdgesReplaced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockindex_index_edges_replaced_total",
				Help: "Total number of relationship edge-set replacements",
			},
		),
		IndexEntriesRepaired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockindex_index_entries_repaired_total",
				Help: "Total number of index entries repaired by the reconciler",
			},
		),

		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_search_requests_total",
				Help: "Total number of block search requests",
			},
			[]string{"mode", "status"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blockindex_search_duration_seconds",
				Help:    "Block search duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SearchCandidateCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blockindex_search_candidate_count",
				Help:    "Number of candidate blocks considered per search",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockindex_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockindex_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		BlocksTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockindex_blocks_total",
				Help: "Total number of reusable blocks",
			},
		),
		DocumentsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockindex_documents_total",
				Help: "Total number of documents",
			},
		),
		EdgesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockindex_edges_total",
				Help: "Total number of block relationship edges",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.IndexSyncTotal,
		m.IndexSyncDuration,
		m.IndexEdgesReplaced,
		m.IndexEntriesRepaired,
		m.SearchRequestsTotal,
		m.SearchDuration,
		m.SearchCandidateCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.BlocksTotal,
		m.DocumentsTotal,
		m.EdgesTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
