package dto

import (
	"time"

	"github.com/golabing/console/internal/models"
)

// SessionResponse is returned by the auth endpoints.
type SessionResponse struct {
	Session  models.SessionView `json:"session"`
	Redirect string             `json:"redirect,omitempty"`
}

// AddToCartRequest adds a catalogue lab to the cart.
type AddToCartRequest struct {
	LabID string `json:"labId" binding:"required"`
}

// CartItemUpdateResponse reports the outcome of a cart line update.
type CartItemUpdateResponse struct {
	Updated bool                `json:"updated"`
	Cart    models.CartSnapshot `json:"cart"`
}

// CatalogueListResponse is the storefront listing.
type CatalogueListResponse struct {
	Entries []models.CatalogueEntry `json:"entries"`
	Total   int                     `json:"total"`
	Levels  []string                `json:"levels"`
}

// ToggleCredentialRequest enables or disables a VM login.
type ToggleCredentialRequest struct {
	Disable bool `json:"disable"`
}

// PowerRequest asks for a cloud VM lifecycle action.
type PowerRequest struct {
	Action models.PowerAction `json:"action" binding:"required,oneof=stop hibernate"`
}

// ViewerVerification is the outcome of checking a viewer link.
type ViewerVerification struct {
	VMID      string    `json:"vmId"`
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConversionResponse reports a convert-to-catalogue sequence.
type ConversionResponse struct {
	Result models.ConversionResult `json:"result"`
}

// HealthResponse is served by the liveness and readiness probes.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
	Breaker string            `json:"breaker,omitempty"`
}
