package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/service"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/response"
)

type userService interface {
	List(ctx context.Context, actor models.Actor, filter models.UserFilter) (models.UserListing, error)
	Export(ctx context.Context, actor models.Actor, filter models.UserFilter, format string) (*service.ExportFile, error)
	Create(ctx context.Context, actor models.Actor, input models.UserInput) error
	Update(ctx context.Context, actor models.Actor, userID string, input models.UserInput) error
	Delete(ctx context.Context, actor models.Actor, req models.DeleteUsersRequest) error
	AssignRole(ctx context.Context, actor models.Actor, userID string, req models.RoleAssignment) error
	AssignOrganization(ctx context.Context, actor models.Actor, userID string, req models.OrganizationAssignment) error
	AssignLab(ctx context.Context, actor models.Actor, userID string, req models.LabAssignment) error
	ListOrgAdmins(ctx context.Context, actor models.Actor, orgID string) ([]models.UserRecord, error)
	CreateOrgAdmin(ctx context.Context, actor models.Actor, input models.UserInput) error
	BulkUpload(ctx context.Context, actor models.Actor, r io.Reader) (models.BulkUploadResult, error)
}

// UserHandler manages platform users.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs a new user handler.
func NewUserHandler(service userService) *UserHandler {
	return &UserHandler{service: service}
}

// List godoc
// @Summary List users
// @Description Filtered users of the caller's organization with stats over the whole organization
// @Tags Users
// @Produce json
// @Param search query string false "Name or email contains"
// @Param role query string false "Role"
// @Param status query string false "Status"
// @Param from query string false "Created from (YYYY-MM-DD)"
// @Param to query string false "Created to (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		invalidPayload(c, err, "invalid user filter")
		return
	}
	listing, err := h.service.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, nil)
}

// Export godoc
// @Summary Export users
// @Tags Users
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /users/export [get]
func (h *UserHandler) Export(c *gin.Context) {
	var filter models.UserFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		invalidPayload(c, err, "invalid user filter")
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
// @Summary Create a user
// @Tags Users
// @Accept json
// @Param payload body models.UserInput true "User"
// @Success 201
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var input models.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid user payload")
		return
	}
	if err := h.service.Create(c.Request.Context(), middleware.CurrentActor(c), input); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// Update godoc
// @Summary Edit a user
// @Tags Users
// @Accept json
// @Param id path string true "User ID"
// @Param payload body models.UserInput true "User"
// @Success 204
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var input models.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid user payload")
		return
	}
	if err := h.service.Update(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), input); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Remove users from the organization
// @Tags Users
// @Accept json
// @Param payload body models.DeleteUsersRequest true "Selection"
// @Success 204
// @Router /users/delete [post]
func (h *UserHandler) Delete(c *gin.Context) {
	var req models.DeleteUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid selection")
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.CurrentActor(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignRole godoc
// @Summary Change a user's role
// @Tags Users
// @Accept json
// @Param id path string true "User ID"
// @Param payload body models.RoleAssignment true "Role"
// @Success 204
// @Router /users/{id}/role [put]
func (h *UserHandler) AssignRole(c *gin.Context) {
	var req models.RoleAssignment
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid role payload")
		return
	}
	if err := h.service.AssignRole(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignOrganization godoc
// @Summary Move a user to another organization
// @Tags Users
// @Accept json
// @Param id path string true "User ID"
// @Param payload body models.OrganizationAssignment true "Organization"
// @Success 204
// @Router /users/{id}/organization [put]
func (h *UserHandler) AssignOrganization(c *gin.Context) {
	var req models.OrganizationAssignment
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid organization payload")
		return
	}
	if err := h.service.AssignOrganization(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignLab godoc
// @Summary Assign a lab to a user
// @Tags Users
// @Accept json
// @Param id path string true "User ID"
// @Param payload body models.LabAssignment true "Lab"
// @Success 204
// @Router /users/{id}/labs [post]
func (h *UserHandler) AssignLab(c *gin.Context) {
	var req models.LabAssignment
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid lab assignment")
		return
	}
	if err := h.service.AssignLab(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkUpload godoc
// @Summary Create users from a CSV file
// @Description No user is created when any row is invalid; the per-row errors are returned in meta
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV with Name, Email and Role columns"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/bulk [post]
func (h *UserHandler) BulkUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.service.BulkUpload(c.Request.Context(), middleware.CurrentActor(c), src)
	if err != nil {
		if len(result.Errors) > 0 {
			response.ErrorWithMeta(c, err, map[string]interface{}{"errors": result.Errors})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListOrgAdmins godoc
// @Summary List organization administrators
// @Tags Users
// @Produce json
// @Param orgId query string false "Organization (superadmin only)"
// @Success 200 {object} response.Envelope
// @Router /org-admins [get]
func (h *UserHandler) ListOrgAdmins(c *gin.Context) {
	admins, err := h.service.ListOrgAdmins(c.Request.Context(), middleware.CurrentActor(c), c.Query("orgId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admins, nil)
}

// CreateOrgAdmin godoc
// @Summary Create an organization administrator
// @Tags Users
// @Accept json
// @Param payload body models.UserInput true "Administrator"
// @Success 201
// @Router /org-admins [post]
func (h *UserHandler) CreateOrgAdmin(c *gin.Context) {
	var input models.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid administrator payload")
		return
	}
	if err := h.service.CreateOrgAdmin(c.Request.Context(), middleware.CurrentActor(c), input); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusCreated)
}
