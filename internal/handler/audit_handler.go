package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/pkg/response"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the console audit trail.
type AuditHandler struct {
	service auditLister
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditLister) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary Audit trail
// @Tags Audit
// @Produce json
// @Param actorId query string false "Actor user ID"
// @Param action query string false "Action"
// @Param resource query string false "Resource"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var filter models.AuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		invalidPayload(c, err, "invalid audit filter")
		return
	}
	logs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
