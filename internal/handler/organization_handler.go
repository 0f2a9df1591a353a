package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/service"
	"github.com/golabing/console/pkg/response"
)

type organizationService interface {
	List(ctx context.Context, actor models.Actor, filter models.OrganizationFilter) ([]models.Organization, error)
	Export(ctx context.Context, actor models.Actor, filter models.OrganizationFilter, format string) (*service.ExportFile, error)
	Create(ctx context.Context, actor models.Actor, input models.OrganizationInput) error
	Update(ctx context.Context, actor models.Actor, orgID string, input models.OrganizationInput) error
	Delete(ctx context.Context, actor models.Actor, orgID string) error
}

// OrganizationHandler manages tenant organizations.
type OrganizationHandler struct {
	service organizationService
}

// NewOrganizationHandler constructs the handler.
func NewOrganizationHandler(service organizationService) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// List godoc
// @Summary List organizations
// @Tags Organizations
// @Produce json
// @Param search query string false "Name or email contains"
// @Param type query string false "Organization type"
// @Param status query string false "Status"
// @Param subscriptionTier query string false "Subscription tier"
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
func (h *OrganizationHandler) List(c *gin.Context) {
	var filter models.OrganizationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		invalidPayload(c, err, "invalid organization filter")
		return
	}
	orgs, err := h.service.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orgs, nil)
}

// Export godoc
// @Summary Export organizations
// @Tags Organizations
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /organizations/export [get]
func (h *OrganizationHandler) Export(c *gin.Context) {
	var filter models.OrganizationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		invalidPayload(c, err, "invalid organization filter")
		return
	}
	file, err := h.service.Export(c.Request.Context(), middleware.CurrentActor(c), filter, c.DefaultQuery("format", service.ExportCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

// Create godoc
// @Summary Create an organization
// @Tags Organizations
// @Accept json
// @Param payload body models.OrganizationInput true "Organization"
// @Success 201
// @Router /organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	var input models.OrganizationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid organization payload")
		return
	}
	if err := h.service.Create(c.Request.Context(), middleware.CurrentActor(c), input); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// Update godoc
// @Summary Edit an organization
// @Tags Organizations
// @Accept json
// @Param id path string true "Organization ID"
// @Param payload body models.OrganizationInput true "Organization"
// @Success 204
// @Router /organizations/{id} [put]
func (h *OrganizationHandler) Update(c *gin.Context) {
	var input models.OrganizationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid organization payload")
		return
	}
	if err := h.service.Update(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), input); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete an organization
// @Tags Organizations
// @Param id path string true "Organization ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /organizations/{id} [delete]
func (h *OrganizationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
