package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

type fakeUserStore struct {
	all       []models.UserRecord
	listedOrg string
	allCalls  int
	created   []models.UserInput
	createOrg string
	bulk      []models.UserInput
	roles     map[string]string
	deleted   []string
	labs      []models.LabAssignment
}

func (f *fakeUserStore) ListByOrganization(_ context.Context, _ []models.BackendCookie, orgID string) ([]models.UserRecord, error) {
	f.listedOrg = orgID
	var out []models.UserRecord
	for _, u := range f.all {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) ListAll(context.Context, []models.BackendCookie) ([]models.UserRecord, error) {
	f.allCalls++
	return f.all, nil
}

func (f *fakeUserStore) ListOrgAdmins(_ context.Context, _ []models.BackendCookie, orgID string) ([]models.UserRecord, error) {
	f.listedOrg = orgID
	return nil, nil
}

func (f *fakeUserStore) Create(_ context.Context, _ []models.BackendCookie, input models.UserInput, orgID string, _ *models.SessionUser) error {
	f.created = append(f.created, input)
	f.createOrg = orgID
	return nil
}

func (f *fakeUserStore) CreateOrgAdmin(_ context.Context, _ []models.BackendCookie, input models.UserInput, orgID string, _ *models.SessionUser) error {
	f.created = append(f.created, input)
	f.createOrg = orgID
	return nil
}

func (f *fakeUserStore) BulkCreate(_ context.Context, _ []models.BackendCookie, users []models.UserInput, _ string, _ *models.SessionUser) error {
	f.bulk = users
	return nil
}

func (f *fakeUserStore) Update(context.Context, []models.BackendCookie, string, models.UserInput) error {
	return nil
}

func (f *fakeUserStore) UpdateRole(_ context.Context, _ []models.BackendCookie, userID, role string) error {
	if f.roles == nil {
		f.roles = map[string]string{}
	}
	f.roles[userID] = role
	return nil
}

func (f *fakeUserStore) UpdateOrganization(context.Context, []models.BackendCookie, string, models.OrganizationAssignment) error {
	return nil
}

func (f *fakeUserStore) AssignLab(_ context.Context, _ []models.BackendCookie, _ string, a models.LabAssignment, _ *models.SessionUser) error {
	f.labs = append(f.labs, a)
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, _ []models.BackendCookie, _ string, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

func userActor(id string, role models.Role, orgID string) models.Actor {
	return models.Actor{User: &models.SessionUser{ID: id, Role: role, OrgID: orgID}}
}

func newUserFixture() (*UserService, *fakeUserStore, *recordedAudit) {
	created := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeUserStore{all: []models.UserRecord{
		{ID: "1", Name: "Ann", Email: "ann@x.io", Role: "trainer", Status: "active", OrgID: "org-1", CreatedAt: &created},
		{ID: "2", Name: "Bob", Email: "bob@x.io", Role: "user", Status: "inactive", OrgID: "org-1", CreatedAt: &created},
		{ID: "3", Name: "Cy", Email: "cy@y.io", Role: "user", Status: "active", OrgID: "org-2"},
	}}
	audit := &recordedAudit{}
	svc := NewUserService(store, nil, nil, audit, nil, nil)
	svc.now = func() time.Time { return created }
	return svc, store, audit
}

func TestUserListScopesByRole(t *testing.T) {
	svc, store, _ := newUserFixture()

	listing, err := svc.List(context.Background(), userActor("a", models.RoleOrgAdmin, "org-1"), models.UserFilter{Search: "ANN"})
	require.NoError(t, err)
	assert.Equal(t, "org-1", store.listedOrg)
	require.Len(t, listing.Users, 1)
	assert.Equal(t, "Ann", listing.Users[0].Name)
	assert.Equal(t, models.UserStats{Total: 2, Active: 1, Trainers: 1}, listing.Stats)

	listing, err = svc.List(context.Background(), userActor("root", models.RoleSuperAdmin, ""), models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.allCalls)
	assert.Len(t, listing.Users, 3)

	_, err = svc.List(context.Background(), userActor("t", models.RoleTrainer, "org-1"), models.UserFilter{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserCreateValidation(t *testing.T) {
	svc, store, audit := newUserFixture()
	actor := userActor("a", models.RoleOrgAdmin, "org-1")

	input := models.UserInput{Name: "Dee", Email: "dee@x.io", Password: "secret1", ConfirmPassword: "secret2", Role: "user"}
	err := svc.Create(context.Background(), actor, input)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	input.ConfirmPassword = "secret1"
	input.Role = "orgsuperadmin"
	err = svc.Create(context.Background(), actor, input)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	input.Role = "trainer"
	input.OrgID = "org-9"
	require.NoError(t, svc.Create(context.Background(), actor, input))
	assert.Equal(t, "org-1", store.createOrg)
	assert.Equal(t, []string{models.AuditActionUserCreate}, audit.actions)
}

func TestUserAssignRoleAndLab(t *testing.T) {
	svc, store, _ := newUserFixture()
	actor := userActor("s", models.RoleOrgSuperAdmin, "org-1")

	require.NoError(t, svc.AssignRole(context.Background(), actor, "2", models.RoleAssignment{Role: "orgadmin"}))
	assert.Equal(t, "orgadmin", store.roles["2"])

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	err := svc.AssignLab(context.Background(), actor, "2", models.LabAssignment{Kind: models.KindCluster, LabID: "lab-1", StartDate: start, EndDate: start.Add(-time.Hour)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.AssignLab(context.Background(), actor, "2", models.LabAssignment{Kind: models.KindCluster, LabID: "lab-1", StartDate: start, EndDate: start.AddDate(0, 0, 7)}))
	assert.Len(t, store.labs, 1)

	err = svc.AssignOrganization(context.Background(), actor, "2", models.OrganizationAssignment{OrgID: "org-2"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserDeleteRequiresSelection(t *testing.T) {
	svc, store, _ := newUserFixture()
	actor := userActor("a", models.RoleOrgAdmin, "org-1")

	err := svc.Delete(context.Background(), actor, models.DeleteUsersRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), actor, models.DeleteUsersRequest{UserIDs: []string{"1", "2"}}))
	assert.Equal(t, []string{"1", "2"}, store.deleted)
}

func TestParseBulkUsersReportsRows(t *testing.T) {
	rows := []map[string]string{
		{"name": "Ann", "email": "ann@x.io", "role": "Trainer"},
		{"name": "", "email": "bad-email"},
		{"name": "Ann Again", "email": "ANN@x.io"},
		{"name": "Eve", "email": "eve@x.io", "role": "root"},
	}

	users, problems := ParseBulkUsers(rows)

	require.Len(t, users, 4)
	assert.Equal(t, "trainer", users[0].Role)
	assert.Equal(t, "user", users[1].Role)
	assert.Equal(t, []models.UploadError{
		{Row: 3, Message: "Name is required"},
		{Row: 3, Message: "Invalid email format"},
		{Row: 4, Message: "Duplicate email address"},
		{Row: 5, Message: "Invalid role"},
	}, problems)
}

func TestBulkUploadCreatesAllOrNothing(t *testing.T) {
	svc, store, audit := newUserFixture()
	actor := userActor("s", models.RoleOrgSuperAdmin, "org-1")

	bad := "name,email,role\nAnn,ann@x.io,user\nBob,,user\n"
	result, err := svc.BulkUpload(context.Background(), actor, strings.NewReader(bad))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Nil(t, store.bulk)

	good := "Name,Email,Role\nAnn,ann@x.io,user\n\nBob,bob@x.io,trainer\n"
	result, err = svc.BulkUpload(context.Background(), actor, strings.NewReader(good))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Len(t, store.bulk, 2)
	assert.Equal(t, []string{models.AuditActionUserBulkUpload}, audit.actions)
}

func TestUserExportFormats(t *testing.T) {
	svc, _, _ := newUserFixture()
	actor := userActor("a", models.RoleOrgAdmin, "org-1")

	file, err := svc.Export(context.Background(), actor, models.UserFilter{Status: "active"}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "users-20240310.csv", file.Filename)
	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Name,Email,Role,Organization,Status,Created,Last Active", lines[0])
	assert.Equal(t, "Ann,ann@x.io,trainer,,active,2024-03-10,", lines[1])

	file, err = svc.Export(context.Background(), actor, models.UserFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))

	_, err = svc.Export(context.Background(), actor, models.UserFilter{}, "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCanGrantRole(t *testing.T) {
	assert.True(t, CanGrantRole(models.RoleSuperAdmin, "orgsuperadmin"))
	assert.True(t, CanGrantRole(models.RoleOrgAdmin, "Trainer"))
	assert.False(t, CanGrantRole(models.RoleOrgAdmin, "orgadmin"))
	assert.False(t, CanGrantRole(models.RoleTrainer, "user"))
}
