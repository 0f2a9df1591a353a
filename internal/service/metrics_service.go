package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/golabing/console/internal/models"
)

// Cache tiers used as metric labels.
const (
	CacheTierLocal  = "local"
	CacheTierShared = "shared"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	cacheLatency     *prometheus.HistogramVec
	cacheWrite       prometheus.Observer
	cacheHitRatio    prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	dbQueryDuration  *prometheus.HistogramVec
	profileFetches   *prometheus.CounterVec
	eventClients     prometheus.Gauge
	eventsDropped    prometheus.Counter

	cacheHitCount         uint64
	cacheMissCount        uint64
	requestCount          uint64
	requestDurationTotal  uint64
	upstreamCount         uint64
	upstreamFailureCount  uint64
	upstreamDurationTotal uint64
	eventClientCount      int64
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

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lab_backend_request_duration_seconds",
		Help:    "Duration of lab backend calls in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	upstreamTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lab_backend_requests_total",
		Help: "Lab backend calls by route and status (0 for transport failures)",
	}, []string{"route", "status"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by tier and result",
	}, []string{"tier", "result"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	profileFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_profile_fetches_total",
		Help: "Profile resolutions by outcome",
	}, []string{"outcome"})

	eventClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "event_stream_clients",
		Help: "Connected event stream subscribers",
	})

	eventsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_stream_dropped_total",
		Help: "Events dropped because a subscriber was too slow",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, upstreamDuration, upstreamTotal, cacheLatency, cacheWrite,
		cacheHitRatio, cacheLookups, dbQueryDuration, profileFetches, eventClients, eventsDropped, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		upstreamDuration: upstreamDuration,
		upstreamTotal:    upstreamTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheLookups:     cacheLookups,
		dbQueryDuration:  dbQueryDuration,
		profileFetches:   profileFetches,
		eventClients:     eventClients,
		eventsDropped:    eventsDropped,
	}
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveUpstream records a lab backend call. Status 0 marks a transport failure.
func (m *MetricsService) ObserveUpstream(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(route).Observe(duration.Seconds())
	m.upstreamTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	atomic.AddUint64(&m.upstreamCount, 1)
	atomic.AddUint64(&m.upstreamDurationTotal, uint64(duration.Nanoseconds()))
	if status == 0 || status >= http.StatusInternalServerError {
		atomic.AddUint64(&m.upstreamFailureCount, 1)
	}
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(tier string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(tier).Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues(tier, "hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues(tier, "miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordProfileFetch counts profile resolutions by outcome.
func (m *MetricsService) RecordProfileFetch(outcome string) {
	if m == nil {
		return
	}
	m.profileFetches.WithLabelValues(outcome).Inc()
}

// EventClientConnected adjusts the subscriber gauge by delta.
func (m *MetricsService) EventClientConnected(delta int) {
	if m == nil {
		return
	}
	m.eventClients.Add(float64(delta))
	atomic.AddInt64(&m.eventClientCount, int64(delta))
}

// EventDropped counts an event discarded for a slow subscriber.
func (m *MetricsService) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// Snapshot returns aggregated metrics for the system status endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	upstream := atomic.LoadUint64(&m.upstreamCount)
	upstreamDuration := atomic.LoadUint64(&m.upstreamDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgUpstreamMs float64
	if upstream > 0 {
		avgUpstreamMs = float64(upstreamDuration) / float64(upstream) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		RequestsTotal:             requests,
		AverageRequestDurationMs:  avgRequestMs,
		UpstreamCalls:             upstream,
		UpstreamFailures:          atomic.LoadUint64(&m.upstreamFailureCount),
		AverageUpstreamDurationMs: avgUpstreamMs,
		CacheHits:                 hits,
		CacheMisses:               misses,
		CacheHitRatio:             cacheRatio,
		EventSubscribers:          atomic.LoadInt64(&m.eventClientCount),
		Goroutines:                runtime.NumGoroutine(),
		GeneratedAt:               time.Now().UTC(),
	}
}
