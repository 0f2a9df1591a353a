package repository

import (
	"context"
	"strings"

	"github.com/golabing/console/internal/models"
)

// OrganizationRepository wraps the backend organization endpoints.
type OrganizationRepository struct {
	client *BackendClient
}

// NewOrganizationRepository constructs an organization repository.
func NewOrganizationRepository(client *BackendClient) *OrganizationRepository {
	return &OrganizationRepository{client: client}
}

// List returns every organization.
func (r *OrganizationRepository) List(ctx context.Context, creds []models.BackendCookie) ([]models.Organization, error) {
	var out struct {
		Data []rawOrganization `json:"data"`
	}
	if err := r.client.Get("organization_ms/organizations").Cookies(creds).Do(ctx, &out); err != nil {
		return nil, err
	}
	orgs := make([]models.Organization, 0, len(out.Data))
	for _, raw := range out.Data {
		orgs = append(orgs, raw.toModel())
	}
	return orgs, nil
}

// Create registers a new organization administered by adminID.
func (r *OrganizationRepository) Create(ctx context.Context, creds []models.BackendCookie, input models.OrganizationInput, adminID string) error {
	data := map[string]string{
		"organization_name": input.Name,
		"admin_name":        input.AdminName,
		"email":             input.Email,
		"phone":             input.Phone,
		"address":           input.Address,
		"website":           input.Website,
		"org_type":          input.Type,
		"admin_id":          adminID,
	}
	return r.client.Post("createOrganization").
		Cookies(creds).
		JSON(map[string]interface{}{"organizationData": data}).
		Do(ctx, nil)
}

// Update edits an organization.
func (r *OrganizationRepository) Update(ctx context.Context, creds []models.BackendCookie, orgID string, input models.OrganizationInput) error {
	return r.client.Put("updateOrganization", orgID).Cookies(creds).JSON(input).Do(ctx, nil)
}

// Delete removes an organization.
func (r *OrganizationRepository) Delete(ctx context.Context, creds []models.BackendCookie, orgID string) error {
	return r.client.Delete("organization_ms/deleteOrganization", orgID).Cookies(creds).Do(ctx, nil)
}

type rawOrganization struct {
	ID               string        `json:"id"`
	Name             string        `json:"organization_name"`
	Email            string        `json:"org_email"`
	Type             string        `json:"org_type"`
	Status           string        `json:"status"`
	SubscriptionTier string        `json:"subscription_tier"`
	AdminID          string        `json:"org_admin"`
	UsersCount       models.Number `json:"users_count"`
	LabsCount        models.Number `json:"labs_count"`
	CreatedAt        string        `json:"created_at"`
}

func (raw rawOrganization) toModel() models.Organization {
	status := strings.ToLower(raw.Status)
	if status == "" {
		status = "active"
	}
	return models.Organization{
		ID:               raw.ID,
		Name:             raw.Name,
		Email:            raw.Email,
		Type:             raw.Type,
		Status:           status,
		SubscriptionTier: raw.SubscriptionTier,
		AdminID:          raw.AdminID,
		UsersCount:       raw.UsersCount,
		LabsCount:        raw.LabsCount,
		CreatedAt:        parseDate(raw.CreatedAt),
	}
}
