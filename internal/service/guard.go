package service

import (
	"net/url"
	"strings"

	"github.com/golabing/console/internal/models"
)

// GuardDecision is the outcome of evaluating a protected route.
type GuardDecision int

const (
	GuardRender GuardDecision = iota
	GuardLoading
	GuardFetchProfile
	GuardRedirectLogin
	GuardRedirectUnauthorized
)

func (d GuardDecision) String() string {
	switch d {
	case GuardRender:
		return "render"
	case GuardLoading:
		return "loading"
	case GuardFetchProfile:
		return "fetch_profile"
	case GuardRedirectLogin:
		return "redirect_login"
	case GuardRedirectUnauthorized:
		return "redirect_unauthorized"
	}
	return "unknown"
}

// GuardState is the part of a session the guard looks at. ProfileAttempted
// is set once a profile resolution has run for the current request.
type GuardState struct {
	Authenticated    bool
	Loading          bool
	Role             models.Role
	ProfileAttempted bool
}

// StateOf projects sess for Decide.
func StateOf(sess *models.Session, attempted bool) GuardState {
	if sess == nil {
		return GuardState{ProfileAttempted: attempted}
	}
	state := GuardState{
		Authenticated:    sess.Authenticated && sess.User != nil,
		Loading:          sess.Loading,
		ProfileAttempted: attempted,
	}
	if sess.User != nil {
		state.Role = sess.User.Role
	}
	return state
}

// Decide evaluates a route guarded by allowed. An empty allow-list admits any
// authenticated user.
func Decide(state GuardState, allowed []models.Role) GuardDecision {
	if state.Loading {
		return GuardLoading
	}
	if !state.Authenticated {
		if !state.ProfileAttempted {
			return GuardFetchProfile
		}
		return GuardRedirectLogin
	}
	if len(allowed) == 0 {
		return GuardRender
	}
	for _, role := range allowed {
		if role == state.Role {
			return GuardRender
		}
	}
	return GuardRedirectUnauthorized
}

// RoutePolicy protects every path under Prefix.
type RoutePolicy struct {
	Prefix string
	Roles  []models.Role
}

// ConsoleRoutes lists the protected dashboard areas. The most specific prefix wins.
var ConsoleRoutes = []RoutePolicy{
	{Prefix: "/dashboard"},
	{Prefix: "/dashboard/labs/vm-session"},
	{Prefix: "/dashboard/labs/org-catalogue", Roles: []models.Role{models.RoleOrgSuperAdmin}},
	{Prefix: "/dashboard/organizations", Roles: []models.Role{models.RoleSuperAdmin}},
	{Prefix: "/dashboard/users", Roles: []models.Role{models.RoleSuperAdmin, models.RoleOrgSuperAdmin, models.RoleOrgAdmin}},
	{Prefix: "/dashboard/org-admins", Roles: []models.Role{models.RoleSuperAdmin, models.RoleOrgSuperAdmin, models.RoleOrgAdmin}},
}

// PolicyFor returns the allow-list for path and whether the path is protected.
func PolicyFor(path string) ([]models.Role, bool) {
	var (
		best  *RoutePolicy
		found bool
	)
	for i := range ConsoleRoutes {
		p := &ConsoleRoutes[i]
		if path != p.Prefix && !strings.HasPrefix(path, p.Prefix+"/") {
			continue
		}
		if !found || len(p.Prefix) > len(best.Prefix) {
			best = p
			found = true
		}
	}
	if !found {
		return nil, false
	}
	return best.Roles, true
}

// Redirect targets.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// LoginRedirect builds the login URL that returns the user to target afterwards.
func LoginRedirect(target string) string {
	if target == "" || target == LoginPath {
		return LoginPath
	}
	return LoginPath + "?redirect=" + url.QueryEscape(target)
}

// SafeRedirect accepts only same-site absolute paths as post-login targets.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
