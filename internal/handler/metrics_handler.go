package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/golabing/console/internal/dto"
	"github.com/golabing/console/internal/service"
	"github.com/golabing/console/pkg/response"
)

// ReadinessCheck probes one dependency. A nil error means ready.
type ReadinessCheck func(ctx context.Context) error

type breakerReporter interface {
	BreakerState() gobreaker.State
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	checks  map[string]ReadinessCheck
	backend breakerReporter
	timeout time.Duration
}

// NewMetricsHandler constructs a metrics handler. backend may be nil.
func NewMetricsHandler(metrics *service.MetricsService, backend breakerReporter, checks map[string]ReadinessCheck) *MetricsHandler {
	if checks == nil {
		checks = map[string]ReadinessCheck{}
	}
	return &MetricsHandler{metrics: metrics, checks: checks, backend: backend, timeout: 2 * time.Second}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Ready runs every readiness check. An open backend breaker degrades the
// status without failing the probe.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	result := dto.HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			result.Checks[name] = err.Error()
			result.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		result.Checks[name] = "ok"
	}
	if h.backend != nil {
		state := h.backend.BreakerState()
		result.Breaker = state.String()
		if state == gobreaker.StateOpen && status == http.StatusOK {
			result.Status = "degraded"
		}
	}
	c.JSON(status, result)
}

// Snapshot godoc
// @Summary Console runtime metrics
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
