package repository

import (
	"context"

	"github.com/golabing/console/internal/models"
)

// CatalogueRepository wraps the backend catalogue endpoints.
type CatalogueRepository struct {
	client *BackendClient
}

// NewCatalogueRepository constructs a catalogue repository.
func NewCatalogueRepository(client *BackendClient) *CatalogueRepository {
	return &CatalogueRepository{client: client}
}

// ListAll returns every catalogue entry.
func (r *CatalogueRepository) ListAll(ctx context.Context, creds []models.BackendCookie) ([]models.CatalogueEntry, error) {
	var out struct {
		Data []models.CatalogueEntry `json:"data"`
	}
	if err := r.client.Post("lab_ms/getAllLabCatalogues").Cookies(creds).Do(ctx, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []models.CatalogueEntry{}
	}
	return out.Data, nil
}

// Create stores a new catalogue entry.
func (r *CatalogueRepository) Create(ctx context.Context, creds []models.BackendCookie, payload interface{}) error {
	return r.client.Post("createCatalogue").Cookies(creds).JSON(payload).Do(ctx, nil)
}

// Update modifies a catalogue entry.
func (r *CatalogueRepository) Update(ctx context.Context, creds []models.BackendCookie, payload interface{}) error {
	return r.client.Post("lab_ms/updateLabCatalogue").Cookies(creds).JSON(payload).Do(ctx, nil)
}

// Delete removes a catalogue entry.
func (r *CatalogueRepository) Delete(ctx context.Context, creds []models.BackendCookie, id string) error {
	return r.client.Delete("lab_ms/deleteLabCatalogue", id).Cookies(creds).Do(ctx, nil)
}
