package repository

import (
	"context"

	"github.com/golabing/console/internal/models"
)

// CartRepository wraps the backend cart endpoints.
type CartRepository struct {
	client *BackendClient
}

// NewCartRepository constructs a cart repository.
func NewCartRepository(client *BackendClient) *CartRepository {
	return &CartRepository{client: client}
}

// AddCartItemRequest is the backend payload for adding a lab to the cart.
type AddCartItemRequest struct {
	LabID       string  `json:"labId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	UserID      string  `json:"userId"`
}

// List returns the user's cart items.
func (r *CartRepository) List(ctx context.Context, creds []models.BackendCookie, userID string) ([]models.CartItem, error) {
	var out struct {
		Data []models.CartItem `json:"data"`
	}
	if err := r.client.Get("lab_ms/getCartItems", userID).Cookies(creds).Do(ctx, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []models.CartItem{}
	}
	return out.Data, nil
}

// Add inserts a cart item.
func (r *CartRepository) Add(ctx context.Context, creds []models.BackendCookie, req AddCartItemRequest) error {
	return r.client.Post("lab_ms/addToCart").Cookies(creds).JSON(req).Do(ctx, nil)
}

// Remove deletes a single cart item.
func (r *CartRepository) Remove(ctx context.Context, creds []models.BackendCookie, itemID string) error {
	return r.client.Delete("lab_ms/removeFromCart", itemID).Cookies(creds).Do(ctx, nil)
}

// Clear empties the user's cart.
func (r *CartRepository) Clear(ctx context.Context, creds []models.BackendCookie, userID string) error {
	return r.client.Delete("lab_ms/clearCart", userID).Cookies(creds).Do(ctx, nil)
}

// Update applies a partial update and returns the stored item.
func (r *CartRepository) Update(ctx context.Context, creds []models.BackendCookie, itemID string, patch models.CartItemPatch) (*models.CartItem, error) {
	var out struct {
		Data *models.CartItem `json:"data"`
	}
	if err := r.client.Put("lab_ms/updateCartItem", itemID).Cookies(creds).JSON(patch).Do(ctx, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateCheckoutSession submits the enriched cart and returns the hosted checkout session id.
func (r *CartRepository) CreateCheckoutSession(ctx context.Context, creds []models.BackendCookie, userID string, lines []models.CheckoutLine) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	err := r.client.Post("lab_ms/create-checkout-session").
		Cookies(creds).
		JSON(map[string]interface{}{"userId": userID, "cartItems": lines}).
		Do(ctx, &out)
	if err != nil {
		return "", err
	}
	return out.SessionID, nil
}
