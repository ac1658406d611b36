package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheEvictions  prometheus.Counter

	statsTriggerEvents     *prometheus.CounterVec
	statsRecomputeTotal    prometheus.Counter
	statsRecomputeDuration prometheus.Histogram
	statsRecomputeNoop     prometheus.Counter
	statsDrift             prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cacheEvictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_invalidated_keys_total",
		Help: "Total cache keys removed by invalidation",
	})

	statsTriggerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stats_trigger_events_total",
		Help: "Row events that dispatched the stats trigger, by table and operation",
	}, []string{"table", "op"})

	statsRecomputeTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_recompute_total",
		Help: "Per-user profile statistics recomputations",
	})

	statsRecomputeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stats_recompute_duration_seconds",
		Help:    "Duration of a single profile statistics recompute",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	statsRecomputeNoop := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_recompute_noop_total",
		Help: "Recomputes that matched no profile row",
	})

	statsDrift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_drift_detected_total",
		Help: "Profiles whose stored counters differed from live counts when checked",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses, cacheEvictions,
		statsTriggerEvents, statsRecomputeTotal, statsRecomputeDuration, statsRecomputeNoop, statsDrift, goroutines)

	return &MetricsService{
		registry:               registry,
		handler:                promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:        requestDuration,
		requestTotal:           requestTotal,
		cacheLatency:           cacheLatency,
		cacheWrite:             cacheWrite,
		cacheHits:              cacheHits,
		cacheMisses:            cacheMisses,
		cacheEvictions:         cacheEvictions,
		statsTriggerEvents:     statsTriggerEvents,
		statsRecomputeTotal:    statsRecomputeTotal,
		statsRecomputeDuration: statsRecomputeDuration,
		statsRecomputeNoop:     statsRecomputeNoop,
		statsDrift:             statsDrift,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
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

// RecordCacheOperation records a cache lookup outcome.
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

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordCacheInvalidation counts removed cache keys.
func (m *MetricsService) RecordCacheInvalidation(removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(removed))
}

// RecordStatsEvent counts a row event that dispatched the stats trigger.
func (m *MetricsService) RecordStatsEvent(table Table, op Op) {
	if m == nil {
		return
	}
	m.statsTriggerEvents.WithLabelValues(string(table), string(op)).Inc()
}

// ObserveStatsRecompute records one per-user recompute; matched is false for a missing profile.
func (m *MetricsService) ObserveStatsRecompute(duration time.Duration, matched bool) {
	if m == nil {
		return
	}
	m.statsRecomputeTotal.Inc()
	m.statsRecomputeDuration.Observe(duration.Seconds())
	if !matched {
		m.statsRecomputeNoop.Inc()
	}
}

// RecordStatsDrift counts a detected counter drift.
func (m *MetricsService) RecordStatsDrift() {
	if m == nil {
		return
	}
	m.statsDrift.Inc()
}
