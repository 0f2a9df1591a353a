package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

type fakeCatalogueStore struct {
	entries   []models.CatalogueEntry
	listCalls int
	created   []interface{}
	updated   []interface{}
	deleted   []string
}

func (f *fakeCatalogueStore) ListAll(_ context.Context, _ []models.BackendCookie) ([]models.CatalogueEntry, error) {
	f.listCalls++
	return append([]models.CatalogueEntry(nil), f.entries...), nil
}

func (f *fakeCatalogueStore) Create(_ context.Context, _ []models.BackendCookie, payload interface{}) error {
	f.created = append(f.created, payload)
	return nil
}

func (f *fakeCatalogueStore) Update(_ context.Context, _ []models.BackendCookie, payload interface{}) error {
	f.updated = append(f.updated, payload)
	return nil
}

func (f *fakeCatalogueStore) Delete(_ context.Context, _ []models.BackendCookie, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newCatalogueFixture() (*CatalogueService, *fakeCatalogueStore) {
	store := &fakeCatalogueStore{entries: []models.CatalogueEntry{
		{ID: "c1", LabID: "lab-1", Title: "Kubernetes Basics", Level: "beginner", Category: "devops", Provider: "aws", AdminID: "u2"},
		{ID: "c2", LegacyLabID: "lab-2", Title: "Linux Hardening", Level: "advanced", Category: "security", Provider: "azure", AdminID: "u9", IsFree: true},
	}}
	cache := NewCacheService(nil, nil, CacheOptions{Enabled: true, LocalSize: 4}, nil)
	return NewCatalogueService(store, cache, nil, nil, nil), store
}

func actorWithRole(id string, role models.Role) models.Actor {
	return models.Actor{User: &models.SessionUser{ID: id, Role: role}}
}

func TestCatalogueFetchAllUsesCache(t *testing.T) {
	svc, store := newCatalogueFixture()
	actor := actorWithRole("u1", models.RoleUser)

	first, hit, err := svc.FetchAll(context.Background(), actor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, first, 2)

	second, hit, err := svc.FetchAll(context.Background(), actor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.listCalls)
}

func TestCatalogueListFilters(t *testing.T) {
	svc, _ := newCatalogueFixture()

	entries, _, err := svc.List(context.Background(), models.Actor{}, models.CatalogueFilter{Search: "linux", FreeOnly: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c2", entries[0].ID)

	entry, err := svc.Get(context.Background(), models.Actor{}, "lab-2")
	require.NoError(t, err)
	assert.Equal(t, "c2", entry.ID)

	_, err = svc.Get(context.Background(), models.Actor{}, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCatalogueCreateRequiresCapabilityAndValidLevel(t *testing.T) {
	svc, store := newCatalogueFixture()
	input := models.CatalogueInput{Title: "Go", Level: "expert", Price: 10}

	_, err := svc.Create(context.Background(), actorWithRole("u3", models.RoleOrgAdmin), input)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	bad := input
	bad.Level = "guru"
	_, err = svc.Create(context.Background(), actorWithRole("u1", models.RoleSuperAdmin), bad)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, _ = svc.FetchAll(context.Background(), models.Actor{})
	entries, err := svc.Create(context.Background(), actorWithRole("u1", models.RoleSuperAdmin), input)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	require.Len(t, store.created, 1)
	assert.Equal(t, "u1", store.created[0].(map[string]interface{})["admin_id"])
	assert.Equal(t, 2, store.listCalls)
}

func TestCatalogueOwnershipRule(t *testing.T) {
	svc, store := newCatalogueFixture()
	input := models.CatalogueInput{Title: "Updated", Level: "beginner"}

	_, err := svc.Update(context.Background(), actorWithRole("u2", models.RoleOrgSuperAdmin), "c1", input)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), actorWithRole("u2", models.RoleOrgSuperAdmin), "c2", input)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Delete(context.Background(), actorWithRole("u1", models.RoleSuperAdmin), "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, store.deleted)
	assert.Len(t, store.updated, 1)
}
