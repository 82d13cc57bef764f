package observability

import (
	"database/sql"
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

	// Page metrics
	PageOperationsTotal *prometheus.CounterVec
	PageViewsTotal      prometheus.Counter
	VersionsCreated     prometheus.Counter
	RevertsTotal        prometheus.Counter

	// Activity metrics
	ActivityEntriesTotal   *prometheus.CounterVec
	ActivityRecordFailures prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intranet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intranet_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intranet_page_operations_total",
				Help: "Total number of page operations",
			},
			[]string{"operation", "status"},
		),
		PageViewsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "intranet_page_views_total",
				Help: "Total number of recorded page views",
			},
		),
		VersionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "intranet_versions_created_total",
				Help: "Total number of page versions created",
			},
		),
		RevertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "intranet_reverts_total",
				Help: "Total number of page reverts",
			},
		),
		ActivityEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intranet_activity_entries_total",
				Help: "Total number of activity entries recorded",
			},
			[]string{"action"},
		),
		ActivityRecordFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "intranet_activity_record_failures_total",
				Help: "Total number of best-effort activity entries dropped",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intranet_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intranet_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "intranet_db_connections_active",
				Help: "Number of connections currently in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "intranet_db_connections_idle",
				Help: "Number of idle connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "intranet_db_connections_wait_count",
				Help: "Cumulative number of connection waits",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PageOperationsTotal,
		m.PageViewsTotal,
		m.VersionsCreated,
		m.RevertsTotal,
		m.ActivityEntriesTotal,
		m.ActivityRecordFailures,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// Handler returns the /metrics scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPageOperation counts one page operation outcome.
func (m *Metrics) RecordPageOperation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCacheAccess counts one version cache lookup for the named tier.
func (m *Metrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// UpdateDBStats copies connection pool stats into the gauges. Called
// periodically by the stats collector goroutine.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware instruments a handler with request count and duration.
// The route template, not the raw URL, is used as the path label to keep
// cardinality bounded.
func (m *Metrics) HTTPMiddleware(routeTemplate func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			path := routeTemplate(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
