package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/dto"
	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

type fakeSessionAPI struct {
	loginErr     error
	loginReq     models.LoginRequest
	fetched      int
	revalidated  int
	loggedOut    bool
	fetchResult  *models.Session
	switchedTo   models.OrganizationRef
	acknowledged bool
}

func (f *fakeSessionAPI) Login(_ context.Context, _ *models.Session, req models.LoginRequest) (*models.Session, string, error) {
	f.loginReq = req
	if f.loginErr != nil {
		return nil, "", f.loginErr
	}
	sess := sessionFor(models.RoleTrainer)
	sess.ExpiresAt = time.Now().Add(time.Hour)
	return sess, "signed-token", nil
}

func (f *fakeSessionAPI) Logout(context.Context, models.Actor) error {
	f.loggedOut = true
	return nil
}

func (f *fakeSessionAPI) FetchUser(_ context.Context, sess *models.Session) (*models.Session, error) {
	f.fetched++
	if f.fetchResult != nil {
		return f.fetchResult, nil
	}
	return sess, nil
}

func (f *fakeSessionAPI) Revalidate(_ context.Context, sess *models.Session) (*models.Session, error) {
	f.revalidated++
	return sess, nil
}

func (f *fakeSessionAPI) SwitchOrganization(_ context.Context, sess *models.Session, org models.OrganizationRef, _ models.Actor) (*models.Session, error) {
	f.switchedTo = org
	next := *sess
	user := next.User.WithOrganization(org)
	next.User = &user
	return &next, nil
}

func (f *fakeSessionAPI) ResetRole(_ context.Context, sess *models.Session, _ models.Actor) (*models.Session, error) {
	next := *sess
	user := next.User.WithoutImpersonation()
	next.User = &user
	return &next, nil
}

func (f *fakeSessionAPI) AcknowledgeExpiry(_ context.Context, sess *models.Session) (*models.Session, error) {
	f.acknowledged = true
	next := *sess
	next.Expired = false
	return &next, nil
}

func authRouter(api *fakeSessionAPI, sess *models.Session) http.Handler {
	h := NewAuthHandler(api, middleware.CookieSettings{Name: "console"})
	r := newTestRouter(sess)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)
	r.POST("/auth/switch-organization", h.SwitchOrganization)
	r.POST("/auth/reset-role", h.ResetRole)
	r.POST("/auth/acknowledge-expiry", h.AcknowledgeExpiry)
	return r
}

func TestAuthHandlerLoginSetsCookieAndSafeRedirect(t *testing.T) {
	api := &fakeSessionAPI{}
	r := authRouter(api, &models.Session{ID: "anon"})

	rec := perform(r, http.MethodPost, "/auth/login?redirect=//evil.example", map[string]string{"email": "ann@x.io", "password": "pw"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "console=signed-token")
	assert.Contains(t, strings.ToLower(rec.Header().Get("Set-Cookie")), "httponly")
	assert.Equal(t, "ann@x.io", api.loginReq.Email)

	var body dto.SessionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, "/dashboard", body.Redirect)
	assert.True(t, body.Session.Authenticated)
	assert.True(t, body.Session.Capabilities.CanAssign)
}

func TestAuthHandlerLoginKeepsSameSiteRedirect(t *testing.T) {
	r := authRouter(&fakeSessionAPI{}, &models.Session{ID: "anon"})

	rec := perform(r, http.MethodPost, "/auth/login?redirect=/dashboard/users", map[string]string{"email": "ann@x.io", "password": "pw"})

	var body dto.SessionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, "/dashboard/users", body.Redirect)
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	r := authRouter(&fakeSessionAPI{loginErr: appErrors.ErrInvalidCredentials}, &models.Session{ID: "anon"})

	rec := perform(r, http.MethodPost, "/auth/login", map[string]string{"email": "ann@x.io", "password": "bad"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Set-Cookie"))
	assert.Equal(t, "INVALID_CREDENTIALS", decodeEnvelope(t, rec).Error.Code)
}

func TestAuthHandlerLogoutClearsCookie(t *testing.T) {
	api := &fakeSessionAPI{}
	r := authRouter(api, sessionFor(models.RoleUser))

	rec := perform(r, http.MethodPost, "/auth/logout", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, api.loggedOut)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAuthHandlerMeRevalidatesOnRequest(t *testing.T) {
	api := &fakeSessionAPI{}
	r := authRouter(api, sessionFor(models.RoleUser))

	perform(r, http.MethodGet, "/auth/me", nil)
	perform(r, http.MethodGet, "/auth/me?revalidate=true", nil)

	assert.Equal(t, 1, api.fetched)
	assert.Equal(t, 1, api.revalidated)
}

func TestAuthHandlerMeAdvertisesRetryWhileLoading(t *testing.T) {
	api := &fakeSessionAPI{fetchResult: &models.Session{ID: "anon", Loading: true}}
	r := authRouter(api, &models.Session{ID: "anon"})

	rec := perform(r, http.MethodGet, "/auth/me", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, middleware.RetryAfterSeconds, rec.Header().Get("Retry-After"))
}

func TestAuthHandlerSwitchAndResetOrganization(t *testing.T) {
	api := &fakeSessionAPI{}
	r := authRouter(api, sessionFor(models.RoleSuperAdmin))

	rec := perform(r, http.MethodPost, "/auth/switch-organization", map[string]string{"id": "org-9", "name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.SessionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, models.RoleOrgAdmin, body.Session.User.Role)
	assert.Equal(t, "Acme", body.Session.User.Organization)
	assert.Equal(t, "org-9", api.switchedTo.ID)

	rec = perform(r, http.MethodPost, "/auth/reset-role", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, models.RoleSuperAdmin, body.Session.User.Role)
}

func TestAuthHandlerSwitchRejectsInvalidPayload(t *testing.T) {
	r := authRouter(&fakeSessionAPI{}, sessionFor(models.RoleSuperAdmin))

	rec := perform(r, http.MethodPost, "/auth/switch-organization", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
