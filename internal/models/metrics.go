package models

import "time"

// MetricsSnapshot summarises console runtime health for the superadmin status view.
type MetricsSnapshot struct {
	RequestsTotal             uint64    `json:"requests_total"`
	AverageRequestDurationMs  float64   `json:"average_request_duration_ms"`
	UpstreamCalls             uint64    `json:"upstream_calls"`
	UpstreamFailures          uint64    `json:"upstream_failures"`
	AverageUpstreamDurationMs float64   `json:"average_upstream_duration_ms"`
	CacheHits                 uint64    `json:"cache_hits"`
	CacheMisses               uint64    `json:"cache_misses"`
	CacheHitRatio             float64   `json:"cache_hit_ratio"`
	EventSubscribers          int64     `json:"event_subscribers"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generated_at"`
}
