package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/golabing/console/internal/models"
)

func TestDecide(t *testing.T) {
	admins := []models.Role{models.RoleSuperAdmin}
	cases := []struct {
		name    string
		state   GuardState
		allowed []models.Role
		want    GuardDecision
	}{
		{"loading wins", GuardState{Loading: true}, admins, GuardLoading},
		{"anonymous first pass fetches", GuardState{}, nil, GuardFetchProfile},
		{"anonymous after fetch redirects", GuardState{ProfileAttempted: true}, nil, GuardRedirectLogin},
		{"role outside allow-list", GuardState{Authenticated: true, Role: models.RoleTrainer}, admins, GuardRedirectUnauthorized},
		{"role inside allow-list", GuardState{Authenticated: true, Role: models.RoleSuperAdmin}, admins, GuardRender},
		{"empty allow-list admits anyone", GuardState{Authenticated: true, Role: models.RoleUser}, nil, GuardRender},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.state, tc.allowed))
		})
	}
}

func TestStateOfRequiresUser(t *testing.T) {
	state := StateOf(&models.Session{Authenticated: true}, false)
	assert.False(t, state.Authenticated)

	state = StateOf(&models.Session{Authenticated: true, User: &models.SessionUser{Role: models.RoleOrgAdmin}}, true)
	assert.True(t, state.Authenticated)
	assert.Equal(t, models.RoleOrgAdmin, state.Role)
	assert.True(t, state.ProfileAttempted)
}

func TestPolicyFor(t *testing.T) {
	roles, ok := PolicyFor("/dashboard/organizations/42")
	assert.True(t, ok)
	assert.Equal(t, []models.Role{models.RoleSuperAdmin}, roles)

	roles, ok = PolicyFor("/dashboard/labs/org-catalogue")
	assert.True(t, ok)
	assert.Equal(t, []models.Role{models.RoleOrgSuperAdmin}, roles)

	roles, ok = PolicyFor("/dashboard/labs/vm-session/vm-1")
	assert.True(t, ok)
	assert.Empty(t, roles)

	roles, ok = PolicyFor("/dashboard")
	assert.True(t, ok)
	assert.Empty(t, roles)

	_, ok = PolicyFor("/dashboardx")
	assert.False(t, ok)
	_, ok = PolicyFor("/login")
	assert.False(t, ok)
}

func TestLoginRedirectKeepsOriginalTarget(t *testing.T) {
	assert.Equal(t, "/login?redirect=%2Fdashboard%2Fusers%3Fpage%3D2", LoginRedirect("/dashboard/users?page=2"))
	assert.Equal(t, "/login", LoginRedirect(""))
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/dashboard/cart", SafeRedirect("/dashboard/cart", "/dashboard"))
	assert.Equal(t, "/dashboard", SafeRedirect("https://evil.example", "/dashboard"))
	assert.Equal(t, "/dashboard", SafeRedirect("//evil.example", "/dashboard"))
}
