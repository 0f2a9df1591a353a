package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/dto"
	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/response"
)

type resourceService interface {
	List(ctx context.Context, actor models.Actor, kind models.ResourceKind) ([]models.ResourceCard, error)
	Get(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string) (*models.ResourceCard, error)
	Update(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string, input models.ResourceUpdate) (*models.ResourceCard, error)
	Delete(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string) error
	Credentials(ctx context.Context, actor models.Actor, kind models.ResourceKind, labID string) ([]models.Credential, error)
	RevealCredential(ctx context.Context, actor models.Actor, kind models.ResourceKind, labID, credentialID string) (*models.Credential, error)
	ToggleCredential(ctx context.Context, actor models.Actor, kind models.ResourceKind, credentialID string, disable bool) error
	EditCredential(ctx context.Context, actor models.Actor, kind models.ResourceKind, credentialID string, input models.CredentialUpdate) error
	Connect(ctx context.Context, actor models.Actor, kind models.ResourceKind, labID, credentialID string) (*models.ViewerLink, error)
	Power(ctx context.Context, actor models.Actor, id string, action models.PowerAction) error
	ConvertToCatalogue(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string, req models.ConversionRequest) (models.ConversionResult, error)
	VerifyViewerLink(vmID, token, sig string) (time.Time, error)
}

// ResourceHandler exposes provisioned labs: cloud VMs, datacenter VMs and clusters.
type ResourceHandler struct {
	service resourceService
}

// NewResourceHandler constructs the handler.
func NewResourceHandler(service resourceService) *ResourceHandler {
	return &ResourceHandler{service: service}
}

func resourceKind(c *gin.Context) (models.ResourceKind, bool) {
	kind, ok := models.ParseResourceKind(c.Param("kind"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown resource kind"))
		return "", false
	}
	return kind, true
}

// List godoc
// @Summary List provisioned labs of a kind
// @Tags Resources
// @Produce json
// @Param kind path string true "cloud_vm, datacenter_vm or cluster"
// @Success 200 {object} response.Envelope
// @Router /resources/{kind} [get]
func (h *ResourceHandler) List(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	cards, err := h.service.List(c.Request.Context(), middleware.CurrentActor(c), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, nil)
}

// Get godoc
// @Summary Provisioned lab detail
// @Tags Resources
// @Produce json
// @Param kind path string true "Resource kind"
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{kind}/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	card, err := h.service.Get(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Update godoc
// @Summary Edit a provisioned lab
// @Tags Resources
// @Accept json
// @Produce json
// @Param kind path string true "Resource kind"
// @Param id path string true "Resource ID"
// @Param payload body models.ResourceUpdate true "Fields"
// @Success 200 {object} response.Envelope
// @Router /resources/{kind}/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	var input models.ResourceUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}
	card, err := h.service.Update(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Delete godoc
// @Summary Delete a provisioned lab, or detach a cluster from the organization
// @Tags Resources
// @Param kind path string true "Resource kind"
// @Param id path string true "Resource ID"
// @Success 204
// @Router /resources/{kind}/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Credentials godoc
// @Summary VM logins with passwords masked
// @Tags Resources
// @Produce json
// @Param kind path string true "Resource kind"
// @Param id path string true "Lab ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{kind}/{id}/credentials [get]
func (h *ResourceHandler) Credentials(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	creds, err := h.service.Credentials(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, creds, nil)
}

// Reveal godoc
// @Summary Reveal one VM login password
// @Tags Resources
// @Produce json
// @Param kind path string true "Resource kind"
// @Param id path string true "Lab ID"
// @Param credentialId path string true "Credential ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{kind}/{id}/credentials/{credentialId}/reveal [post]
func (h *ResourceHandler) Reveal(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	cred, err := h.service.RevealCredential(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("id"), c.Param("credentialId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cred, nil)
}

// Toggle godoc
// @Summary Enable or disable a VM login
// @Tags Resources
// @Accept json
// @Param kind path string true "Resource kind"
// @Param id path string true "Lab ID"
// @Param credentialId path string true "Credential ID"
// @Param payload body dto.ToggleCredentialRequest true "State"
// @Success 204
// @Router /resources/{kind}/{id}/credentials/{credentialId}/toggle [post]
func (h *ResourceHandler) Toggle(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	var req dto.ToggleCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid toggle payload"))
		return
	}
	if err := h.service.ToggleCredential(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("credentialId"), req.Disable); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EditCredential godoc
// @Summary Edit a VM login
// @Tags Resources
// @Accept json
// @Param kind path string true "Resource kind"
// @Param id path string true "Lab ID"
// @Param credentialId path string true "Credential ID"
// @Param payload body models.CredentialUpdate true "Login"
// @Success 204
// @Router /resources/{kind}/{id}/credentials/{credentialId} [put]
func (h *ResourceHandler) EditCredential(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	var input models.CredentialUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid credential payload"))
		return
	}
	if err := h.service.EditCredential(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("credentialId"), input); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Connect godoc
// @Summary Open a remote session to a VM
// @Description Obtains a viewer token and returns the signed viewer route
// @Tags Resources
// @Produce json
// @Param kind path string true "Resource kind"
// @Param id path string true "Lab ID"
// @Param credentialId path string true "Credential ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /resources/{kind}/{id}/credentials/{credentialId}/connect [post]
func (h *ResourceHandler) Connect(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	link, err := h.service.Connect(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("id"), c.Param("credentialId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Power godoc
// @Summary Stop or hibernate a cloud VM
// @Tags Resources
// @Accept json
// @Param id path string true "Cloud VM ID"
// @Param payload body dto.PowerRequest true "Action"
// @Success 202
// @Router /resources/cloud_vm/{id}/power [post]
func (h *ResourceHandler) Power(c *gin.Context) {
	var req dto.PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "action must be stop or hibernate"))
		return
	}
	if err := h.service.Power(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Action); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Convert godoc
// @Summary Convert a provisioned lab into a catalogue entry
// @Tags Resources
// @Accept json
// @Produce json
// @Param kind path string true "Resource kind"
// @Param id path string true "Resource ID"
// @Param payload body models.ConversionRequest true "Catalogue details"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /resources/{kind}/{id}/convert [post]
func (h *ResourceHandler) Convert(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	var req models.ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conversion payload"))
		return
	}
	result, err := h.service.ConvertToCatalogue(c.Request.Context(), middleware.CurrentActor(c), kind, c.Param("id"), req)
	if err != nil {
		if result.FailedAt != "" {
			response.ErrorWithMeta(c, err, map[string]interface{}{"result": result})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ConversionResponse{Result: result}, nil)
}

// VerifyViewer godoc
// @Summary Check a viewer link
// @Tags Resources
// @Produce json
// @Param vmId path string true "VM ID"
// @Param token query string true "Viewer token"
// @Param sig query string true "Link signature"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /viewer/{vmId} [get]
func (h *ResourceHandler) VerifyViewer(c *gin.Context) {
	vmID := c.Param("vmId")
	expires, err := h.service.VerifyViewerLink(vmID, c.Query("token"), c.Query("sig"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ViewerVerification{VMID: vmID, Valid: true, ExpiresAt: expires}, nil)
}
