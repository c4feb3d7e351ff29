package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface,
// the view cache and the arrangement pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	arrangeDuration  prometheus.Histogram
	arrangeEntries   *prometheus.CounterVec
	violations       *prometheus.CounterVec
	versionConflicts prometheus.Counter
	conversions      *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		arrangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arrangement_engine_duration_seconds",
			Help:    "Time spent in the automatic arrangement engine",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
		}),
		arrangeEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arrangement_pool_entries_total",
			Help: "Pool entries processed by the arrangement engine by outcome",
		}, []string{"outcome"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_violations_total",
			Help: "Rejected placements by rule",
		}, []string{"rule"}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrangement_version_conflicts_total",
			Help: "Edits rejected because the day changed underneath them",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "log_conversions_total",
			Help: "Convert requests by result",
		}, []string{"result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "log_deliveries_total",
			Help: "LOG deliveries by transport and status",
		}, []string{"transport", "status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHits, m.cacheMisses,
		m.arrangeDuration, m.arrangeEntries, m.violations, m.versionConflicts, m.conversions, m.deliveries,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveArrangement records one engine run.
func (m *MetricsService) ObserveArrangement(placed, unplaced int, duration time.Duration) {
	if m == nil {
		return
	}
	m.arrangeDuration.Observe(duration.Seconds())
	m.arrangeEntries.WithLabelValues("placed").Add(float64(placed))
	m.arrangeEntries.WithLabelValues("unplaced").Add(float64(unplaced))
}

// RecordViolation counts a rejected placement.
func (m *MetricsService) RecordViolation(rule string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(rule).Inc()
}

// RecordVersionConflict counts a stale edit.
func (m *MetricsService) RecordVersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}

// RecordConversion counts a convert call; result is converted, replayed or failed.
func (m *MetricsService) RecordConversion(result string) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(result).Inc()
}

// RecordDelivery counts a delivery outcome.
func (m *MetricsService) RecordDelivery(transport, status string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(transport, status).Inc()
}
