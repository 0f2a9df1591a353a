package repository

import (
	"context"
	"strings"

	"github.com/golabing/console/internal/models"
)

// UserRepository wraps the backend user-management endpoints.
type UserRepository struct {
	client *BackendClient
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(client *BackendClient) *UserRepository {
	return &UserRepository{client: client}
}

// ListByOrganization returns the users of one organization.
func (r *UserRepository) ListByOrganization(ctx context.Context, creds []models.BackendCookie, orgID string) ([]models.UserRecord, error) {
	return r.list(ctx, r.client.Get("user_ms/getUsersFromOrganization", orgID).Cookies(creds))
}

// ListAll returns every user on the platform.
func (r *UserRepository) ListAll(ctx context.Context, creds []models.BackendCookie) ([]models.UserRecord, error) {
	return r.list(ctx, r.client.Get("allUsers").Cookies(creds))
}

// ListOrgAdmins returns the administrators of an organization.
func (r *UserRepository) ListOrgAdmins(ctx context.Context, creds []models.BackendCookie, orgID string) ([]models.UserRecord, error) {
	users, err := r.list(ctx, r.client.Get("user_ms/getOrgAdmins", orgID).Cookies(creds))
	if err != nil {
		return nil, err
	}
	admins := users[:0]
	for _, u := range users {
		if strings.EqualFold(u.Role, string(models.RoleOrgAdmin)) {
			admins = append(admins, u)
		}
	}
	return admins, nil
}

func (r *UserRepository) list(ctx context.Context, req *BackendRequest) ([]models.UserRecord, error) {
	var out struct {
		Data []rawUser `json:"data"`
	}
	if err := req.Do(ctx, &out); err != nil {
		return nil, err
	}
	users := make([]models.UserRecord, 0, len(out.Data))
	for _, raw := range out.Data {
		users = append(users, raw.toModel())
	}
	return users, nil
}

// Create adds a user to an organization.
func (r *UserRepository) Create(ctx context.Context, creds []models.BackendCookie, input models.UserInput, orgID string, createdBy *models.SessionUser) error {
	return r.client.Post("user_ms/addOrgUser").
		Cookies(creds).
		JSON(map[string]interface{}{"formData": userForm(input), "organizationId": orgID, "createdBy": createdBy}).
		Do(ctx, nil)
}

// CreateOrgAdmin adds an organization administrator.
func (r *UserRepository) CreateOrgAdmin(ctx context.Context, creds []models.BackendCookie, input models.UserInput, orgID string, createdBy *models.SessionUser) error {
	input.Role = string(models.RoleOrgAdmin)
	return r.client.Post("user_ms/addOrgAdmin").
		Cookies(creds).
		JSON(map[string]interface{}{"formData": userForm(input), "organizationId": orgID, "createdBy": createdBy}).
		Do(ctx, nil)
}

// BulkCreate adds many users to an organization in one call.
func (r *UserRepository) BulkCreate(ctx context.Context, creds []models.BackendCookie, users []models.UserInput, orgID string, createdBy *models.SessionUser) error {
	forms := make([]map[string]string, 0, len(users))
	for _, u := range users {
		forms = append(forms, userForm(u))
	}
	return r.client.Post("user_ms/bulkUploadOrgUsers").
		Cookies(creds).
		JSON(map[string]interface{}{"users": forms, "organizationId": orgID, "createdBy": createdBy}).
		Do(ctx, nil)
}

// Update edits a user. An empty password leaves the stored one unchanged.
func (r *UserRepository) Update(ctx context.Context, creds []models.BackendCookie, userID string, input models.UserInput) error {
	return r.client.Put("user_ms/updateUser", userID).Cookies(creds).JSON(userForm(input)).Do(ctx, nil)
}

// UpdateRole changes a user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, creds []models.BackendCookie, userID, role string) error {
	return r.client.Put("updateUserRole").
		Cookies(creds).
		JSON(map[string]string{"userId": userID, "role": role}).
		Do(ctx, nil)
}

// UpdateOrganization moves a user to another organization.
func (r *UserRepository) UpdateOrganization(ctx context.Context, creds []models.BackendCookie, userID string, assignment models.OrganizationAssignment) error {
	values := map[string]string{"organization": assignment.OrgID}
	if assignment.Role != "" {
		values["role"] = assignment.Role
	}
	return r.client.Put("user_ms/updateUserOrganization").
		Cookies(creds).
		JSON(map[string]interface{}{"userId": userID, "values": values}).
		Do(ctx, nil)
}

// AssignLab grants userID a lab for the assignment window.
func (r *UserRepository) AssignLab(ctx context.Context, creds []models.BackendCookie, userID string, assignment models.LabAssignment, assignedBy *models.SessionUser) error {
	start := formatDate(&assignment.StartDate)
	end := formatDate(&assignment.EndDate)
	if assignment.Kind == models.KindCluster {
		return r.client.Post("vmcluster_ms/assignCluster").
			Cookies(creds).
			JSON(map[string]string{
				"labId": assignment.LabID, "userId": userID, "assignedBy": assignedBy.ID,
				"startDate": start, "endDate": end, "orgId": assignedBy.OrgID,
			}).
			Do(ctx, nil)
	}
	return r.client.Post("lab_ms/assignlab").
		Cookies(creds).
		JSON(map[string]string{
			"lab": assignment.LabID, "userId": userID, "assign_admin_id": assignedBy.ID,
			"startDate": start, "endDate": end,
		}).
		Do(ctx, nil)
}

// Delete removes users from an organization.
func (r *UserRepository) Delete(ctx context.Context, creds []models.BackendCookie, orgID string, userIDs []string) error {
	return r.client.Delete("organization", orgID, "users").
		Cookies(creds).
		JSON(map[string][]string{"userIds": userIDs}).
		Do(ctx, nil)
}

func userForm(input models.UserInput) map[string]string {
	form := map[string]string{
		"name":  input.Name,
		"email": input.Email,
		"role":  input.Role,
	}
	if input.Password != "" {
		form["password"] = input.Password
	}
	if input.Status != "" {
		form["status"] = input.Status
	}
	if input.OrgID != "" {
		form["organization"] = input.OrgID
	}
	return form
}

type rawUser struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
	OrgID        string `json:"org_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	LastActive   string `json:"lastactive"`
}

func (raw rawUser) toModel() models.UserRecord {
	status := strings.ToLower(raw.Status)
	if status == "" {
		status = models.UserActive
	}
	return models.UserRecord{
		ID:           raw.ID,
		Name:         raw.Name,
		Email:        raw.Email,
		Role:         strings.ToLower(raw.Role),
		Organization: raw.Organization,
		OrgID:        raw.OrgID,
		Status:       status,
		CreatedAt:    parseDate(raw.CreatedAt),
		LastActive:   parseDate(raw.LastActive),
	}
}
