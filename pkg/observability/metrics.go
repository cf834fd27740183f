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
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Ledger provider metrics
	LedgerRequestsTotal   *prometheus.CounterVec
	LedgerRequestDuration *prometheus.HistogramVec
	LedgerErrorsTotal     *prometheus.CounterVec

	// Entitlement cache metrics
	CacheHitsTotal     *prometheus.CounterVec
	CacheMissesTotal   *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Billing metrics
	DocumentsIssuedTotal *prometheus.CounterVec
	InvoicesPaidTotal    prometheus.Counter
	AmountBilledTotal    *prometheus.CounterVec
	BillingRunsTotal     *prometheus.CounterVec
	BillingRunDuration   prometheus.Histogram

	// Seat enforcement metrics
	EnforcerRunsTotal     *prometheus.CounterVec
	EnforcerRunDuration   prometheus.Histogram
	SeatsDeactivatedTotal prometheus.Counter
	GraceDeadlinesActive  prometheus.Gauge

	// Contract metrics
	ContractsTotal *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Ledger provider metrics
		LedgerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_ledger_requests_total",
				Help: "Total number of requests to the ledger provider",
			},
			[]string{"operation", "status"},
		),
		LedgerRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_ledger_request_duration_seconds",
				Help:    "Ledger provider request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		LedgerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_ledger_errors_total",
				Help: "Total number of ledger provider errors",
			},
			[]string{"operation"},
		),

		// Entitlement cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_cache_hits_total",
				Help: "Total number of entitlement cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_cache_misses_total",
				Help: "Total number of entitlement cache misses",
			},
			[]string{"cache_type"},
		),
		CacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_cache_invalidations_total",
				Help: "Total number of entitlement cache invalidations",
			},
			[]string{"cache_type", "reason"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Billing metrics
		DocumentsIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_documents_issued_total",
				Help: "Total number of billing documents issued",
			},
			[]string{"document_type"},
		),
		InvoicesPaidTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tally_invoices_paid_total",
				Help: "Total number of invoices marked paid",
			},
		),
		AmountBilledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_amount_billed_total",
				Help: "Total amount billed in the smallest currency unit",
			},
			[]string{"document_type"},
		),
		BillingRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_billing_runs_total",
				Help: "Total number of recurring billing runs",
			},
			[]string{"status"},
		),
		BillingRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tally_billing_run_duration_seconds",
				Help:    "Recurring billing run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),

		// Seat enforcement metrics
		EnforcerRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_enforcer_runs_total",
				Help: "Total number of seat enforcement sweeps",
			},
			[]string{"status"},
		),
		EnforcerRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tally_enforcer_run_duration_seconds",
				Help:    "Seat enforcement sweep duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		SeatsDeactivatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tally_seats_deactivated_total",
				Help: "Total number of seats deactivated by enforcement",
			},
		),
		GraceDeadlinesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_grace_deadlines_active",
				Help: "Number of contracts with a pending grace deadline",
			},
		),

		// Contract metrics
		ContractsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tally_contracts_total",
				Help: "Number of contracts by status",
			},
			[]string{"status"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.LedgerRequestsTotal,
		m.LedgerRequestDuration,
		m.LedgerErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidations,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.DocumentsIssuedTotal,
		m.InvoicesPaidTotal,
		m.AmountBilledTotal,
		m.BillingRunsTotal,
		m.BillingRunDuration,
		m.EnforcerRunsTotal,
		m.EnforcerRunDuration,
		m.SeatsDeactivatedTotal,
		m.GraceDeadlinesActive,
		m.ContractsTotal,
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

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
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
