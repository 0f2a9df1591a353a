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

type cartService interface {
	FetchCartItems(ctx context.Context, actor models.Actor) (models.CartSnapshot, error)
	AddToCart(ctx context.Context, actor models.Actor, labID string) (models.CartSnapshot, error)
	RemoveFromCart(ctx context.Context, actor models.Actor, itemID string) (models.CartSnapshot, error)
	ClearCart(ctx context.Context, actor models.Actor) (models.CartSnapshot, error)
	UpdateCartItem(ctx context.Context, actor models.Actor, itemID string, patch models.CartItemPatch) (bool, models.CartSnapshot, error)
	ProceedToCheckout(ctx context.Context, actor models.Actor) (*models.CheckoutSession, error)
	OpenCart(actor models.Actor) error
}

// CartHandler exposes the per-user cart.
type CartHandler struct {
	service cartService
}

// NewCartHandler constructs the handler.
func NewCartHandler(service cartService) *CartHandler {
	return &CartHandler{service: service}
}

// List godoc
// @Summary Cart contents
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cart [get]
func (h *CartHandler) List(c *gin.Context) {
	snap, err := h.service.FetchCartItems(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}

// Add godoc
// @Summary Add a lab to the cart
// @Tags Cart
// @Accept json
// @Produce json
// @Param payload body dto.AddToCartRequest true "Lab"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cart/items [post]
func (h *CartHandler) Add(c *gin.Context) {
	var req dto.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "labId is required"))
		return
	}
	snap, err := h.service.AddToCart(c.Request.Context(), middleware.CurrentActor(c), req.LabID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, snap)
}

// Remove godoc
// @Summary Remove a cart line
// @Tags Cart
// @Produce json
// @Param id path string true "Cart item ID"
// @Success 200 {object} response.Envelope
// @Router /cart/items/{id} [delete]
func (h *CartHandler) Remove(c *gin.Context) {
	snap, err := h.service.RemoveFromCart(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}

// Update godoc
// @Summary Change duration or quantity of a cart line
// @Tags Cart
// @Accept json
// @Produce json
// @Param id path string true "Cart item ID"
// @Param payload body models.CartItemPatch true "Changes"
// @Success 200 {object} response.Envelope
// @Router /cart/items/{id} [patch]
func (h *CartHandler) Update(c *gin.Context) {
	var patch models.CartItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cart update"))
		return
	}
	updated, snap, err := h.service.UpdateCartItem(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CartItemUpdateResponse{Updated: updated, Cart: snap}, nil)
}

// Clear godoc
// @Summary Empty the cart
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	snap, err := h.service.ClearCart(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}

// Checkout godoc
// @Summary Start hosted checkout
// @Description Returns the checkout redirect, or no data when the cart is empty
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /cart/checkout [post]
func (h *CartHandler) Checkout(c *gin.Context) {
	session, err := h.service.ProceedToCheckout(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if session == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Open asks every tab of the caller to show the cart.
func (h *CartHandler) Open(c *gin.Context) {
	if err := h.service.OpenCart(middleware.CurrentActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
