package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/dto"
	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

type fakeCartSrv struct {
	snap      models.CartSnapshot
	addErr    error
	added     string
	patched   models.CartItemPatch
	checkout  *models.CheckoutSession
	opened    bool
	lastActor models.Actor
}

func (f *fakeCartSrv) FetchCartItems(_ context.Context, actor models.Actor) (models.CartSnapshot, error) {
	f.lastActor = actor
	return f.snap, nil
}

func (f *fakeCartSrv) AddToCart(_ context.Context, _ models.Actor, labID string) (models.CartSnapshot, error) {
	f.added = labID
	return f.snap, f.addErr
}

func (f *fakeCartSrv) RemoveFromCart(context.Context, models.Actor, string) (models.CartSnapshot, error) {
	return f.snap, nil
}

func (f *fakeCartSrv) ClearCart(context.Context, models.Actor) (models.CartSnapshot, error) {
	return models.CartSnapshot{Items: []models.CartItem{}}, nil
}

func (f *fakeCartSrv) UpdateCartItem(_ context.Context, _ models.Actor, _ string, patch models.CartItemPatch) (bool, models.CartSnapshot, error) {
	f.patched = patch
	return true, f.snap, nil
}

func (f *fakeCartSrv) ProceedToCheckout(context.Context, models.Actor) (*models.CheckoutSession, error) {
	return f.checkout, nil
}

func (f *fakeCartSrv) OpenCart(models.Actor) error {
	f.opened = true
	return nil
}

func cartRouter(srv *fakeCartSrv) http.Handler {
	h := NewCartHandler(srv)
	r := newTestRouter(sessionFor(models.RoleUser))
	r.GET("/cart", h.List)
	r.POST("/cart/items", h.Add)
	r.DELETE("/cart/items/:id", h.Remove)
	r.PATCH("/cart/items/:id", h.Update)
	r.DELETE("/cart", h.Clear)
	r.POST("/cart/checkout", h.Checkout)
	r.POST("/cart/open", h.Open)
	return r
}

func TestCartHandlerListUsesSessionActor(t *testing.T) {
	srv := &fakeCartSrv{snap: models.CartSnapshot{Items: []models.CartItem{{ID: "i1", LabID: "lab-1"}}, Total: 40}}

	rec := perform(cartRouter(srv), http.MethodGet, "/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", srv.lastActor.UserID())
	var snap models.CartSnapshot
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &snap))
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, 40.0, snap.Total)
}

func TestCartHandlerAddRequiresLab(t *testing.T) {
	rec := perform(cartRouter(&fakeCartSrv{}), http.MethodPost, "/cart/items", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandlerAddDuplicateConflicts(t *testing.T) {
	srv := &fakeCartSrv{addErr: appErrors.Clone(appErrors.ErrConflict, "this lab is already in your cart")}

	rec := perform(cartRouter(srv), http.MethodPost, "/cart/items", map[string]string{"labId": "lab-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "lab-1", srv.added)
	assert.Equal(t, "this lab is already in your cart", decodeEnvelope(t, rec).Error.Message)
}

func TestCartHandlerAddCreated(t *testing.T) {
	rec := perform(cartRouter(&fakeCartSrv{}), http.MethodPost, "/cart/items", map[string]string{"labId": "lab-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCartHandlerUpdatePassesPatch(t *testing.T) {
	srv := &fakeCartSrv{}

	rec := perform(cartRouter(srv), http.MethodPatch, "/cart/items/i1", map[string]float64{"quantity": 3})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.patched.Quantity)
	assert.Equal(t, 3.0, *srv.patched.Quantity)
	var body dto.CartItemUpdateResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.True(t, body.Updated)
}

func TestCartHandlerCheckoutEmptyCartIsNoContent(t *testing.T) {
	rec := perform(cartRouter(&fakeCartSrv{}), http.MethodPost, "/cart/checkout", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCartHandlerCheckoutReturnsRedirect(t *testing.T) {
	srv := &fakeCartSrv{checkout: &models.CheckoutSession{SessionID: "cs_1", RedirectURL: "https://pay.example/cs_1", Total: 65}}

	rec := perform(cartRouter(srv), http.MethodPost, "/cart/checkout", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var session models.CheckoutSession
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &session))
	assert.Equal(t, "https://pay.example/cs_1", session.RedirectURL)
}

func TestCartHandlerOpenAccepted(t *testing.T) {
	srv := &fakeCartSrv{}

	rec := perform(cartRouter(srv), http.MethodPost, "/cart/open", nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, srv.opened)
}
