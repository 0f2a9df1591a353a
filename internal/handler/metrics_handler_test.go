package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/dto"
	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/service"
)

type stubBreaker struct{ state gobreaker.State }

func (s stubBreaker) BreakerState() gobreaker.State { return s.state }

func metricsRouter(h *MetricsHandler) http.Handler {
	r := newTestRouter(sessionFor(models.RoleSuperAdmin))
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	r.GET("/system/metrics", h.Snapshot)
	return r
}

func TestMetricsHandlerReadyReportsFailingCheck(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), nil, map[string]ReadinessCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := perform(metricsRouter(h), http.MethodGet, "/ready", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "connection refused", body.Checks["postgres"])
}

func TestMetricsHandlerReadyDegradedWhenBreakerOpen(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), stubBreaker{state: gobreaker.StateOpen}, nil)

	rec := perform(metricsRouter(h), http.MethodGet, "/ready", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "open", body.Breaker)
}

func TestMetricsHandlerSnapshotAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordCacheOperation(service.CacheTierLocal, true, 0)
	h := NewMetricsHandler(metrics, nil, nil)
	r := metricsRouter(h)

	rec := perform(r, http.MethodGet, "/system/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.MetricsSnapshot
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &snap))
	assert.Equal(t, uint64(1), snap.CacheHits)

	rec = perform(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = perform(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
