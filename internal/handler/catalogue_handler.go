package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/dto"
	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/response"
)

type catalogueService interface {
	List(ctx context.Context, actor models.Actor, filter models.CatalogueFilter) ([]models.CatalogueEntry, bool, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.CatalogueEntry, error)
	Create(ctx context.Context, actor models.Actor, input models.CatalogueInput) ([]models.CatalogueEntry, error)
	Update(ctx context.Context, actor models.Actor, id string, input models.CatalogueInput) ([]models.CatalogueEntry, error)
	Delete(ctx context.Context, actor models.Actor, id string) ([]models.CatalogueEntry, error)
}

// CatalogueHandler serves the lab catalogue.
type CatalogueHandler struct {
	service catalogueService
}

// NewCatalogueHandler constructs the handler.
func NewCatalogueHandler(service catalogueService) *CatalogueHandler {
	return &CatalogueHandler{service: service}
}

// List godoc
// @Summary Catalogue listing
// @Tags Catalogue
// @Produce json
// @Param search query string false "Title or description contains"
// @Param level query string false "Level"
// @Param category query string false "Category"
// @Param provider query string false "Provider"
// @Param free query bool false "Free labs only"
// @Success 200 {object} response.Envelope
// @Router /catalogue [get]
func (h *CatalogueHandler) List(c *gin.Context) {
	var filter models.CatalogueFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid catalogue filter"))
		return
	}
	entries, hit, err := h.service.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.CatalogueListResponse{
		Entries: entries,
		Total:   len(entries),
		Levels:  models.CatalogueLevels,
	}, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Catalogue entry
// @Tags Catalogue
// @Produce json
// @Param id path string true "Catalogue or lab ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /catalogue/{id} [get]
func (h *CatalogueHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Create a catalogue entry
// @Tags Catalogue
// @Accept json
// @Produce json
// @Param payload body models.CatalogueInput true "Entry"
// @Success 201 {object} response.Envelope
// @Router /catalogue [post]
func (h *CatalogueHandler) Create(c *gin.Context) {
	var input models.CatalogueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid catalogue payload"))
		return
	}
	entries, err := h.service.Create(c.Request.Context(), middleware.CurrentActor(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entries)
}

// Update godoc
// @Summary Edit a catalogue entry
// @Tags Catalogue
// @Accept json
// @Produce json
// @Param id path string true "Catalogue ID"
// @Param payload body models.CatalogueInput true "Entry"
// @Success 200 {object} response.Envelope
// @Router /catalogue/{id} [put]
func (h *CatalogueHandler) Update(c *gin.Context) {
	var input models.CatalogueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid catalogue payload"))
		return
	}
	entries, err := h.service.Update(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Delete godoc
// @Summary Delete a catalogue entry
// @Tags Catalogue
// @Produce json
// @Param id path string true "Catalogue ID"
// @Success 200 {object} response.Envelope
// @Router /catalogue/{id} [delete]
func (h *CatalogueHandler) Delete(c *gin.Context) {
	entries, err := h.service.Delete(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
