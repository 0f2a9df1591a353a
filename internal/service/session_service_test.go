package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/repository"
	appErrors "github.com/golabing/console/pkg/errors"
)

type fakeIdentity struct {
	user       *models.SessionUser
	creds      []models.BackendCookie
	loginErr   error
	profile    *models.SessionUser
	profileErr error
	release    chan struct{}

	profileCalls int32
	logoutCalls  int32
}

func (f *fakeIdentity) Login(_ context.Context, _, _ string) (*models.SessionUser, []models.BackendCookie, error) {
	if f.loginErr != nil {
		return nil, nil, f.loginErr
	}
	u := *f.user
	return &u, f.creds, nil
}

func (f *fakeIdentity) Profile(_ context.Context, _ []models.BackendCookie) (*models.SessionUser, error) {
	atomic.AddInt32(&f.profileCalls, 1)
	if f.release != nil {
		<-f.release
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.profile == nil {
		return nil, nil
	}
	u := *f.profile
	return &u, nil
}

func (f *fakeIdentity) Logout(_ context.Context, _ string, _ []models.BackendCookie) error {
	atomic.AddInt32(&f.logoutCalls, 1)
	return nil
}

type recordedAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordedAudit) Record(_ models.Actor, action, _, _ string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func authFailure(status int) error {
	return appErrors.Wrap(&repository.StatusError{Route: "user_ms/user_profile", Status: status}, appErrors.ErrSessionExpired.Code, status, "expired")
}

func newTestSessionService(identity *fakeIdentity) (*SessionService, *repository.MemorySessionRepository, *recordedAudit) {
	store := repository.NewMemorySessionRepository(16, time.Hour)
	audit := &recordedAudit{}
	svc := NewSessionService(store, identity, audit, nil, nil, nil, SessionConfig{Secret: "test-secret", TTL: time.Hour})
	return svc, store, audit
}

var superadmin = &models.SessionUser{ID: "u1", Name: "Root", Email: "root@golabing.ai", Role: models.RoleSuperAdmin, Organization: "GoLabing", OrgID: "org-0"}

func TestSessionLoginPersistsAndIssuesToken(t *testing.T) {
	identity := &fakeIdentity{user: superadmin, creds: []models.BackendCookie{{Name: "session_token", Value: "abc"}}}
	svc, store, audit := newTestSessionService(identity)

	anon, err := svc.Load(context.Background(), "")
	require.NoError(t, err)

	sess, token, err := svc.Login(context.Background(), anon, models.LoginRequest{Email: "root@golabing.ai", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.NotEqual(t, anon.ID, sess.ID)

	sid, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, sid)

	loaded, err := svc.Load(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.User.ID)
	assert.Equal(t, identity.creds, loaded.Credentials)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{models.AuditActionLogin}, audit.actions)
}

func TestSessionLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestSessionService(&fakeIdentity{loginErr: authFailure(http.StatusUnauthorized)})

	_, _, err := svc.Login(context.Background(), nil, models.LoginRequest{Email: "root@golabing.ai", Password: "nope"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Login(context.Background(), nil, models.LoginRequest{Email: "not-an-email"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionLoadDiscardsForeignTokens(t *testing.T) {
	svc, _, _ := newTestSessionService(&fakeIdentity{user: superadmin})
	other := NewSessionService(repository.NewMemorySessionRepository(1, time.Hour), nil, nil, nil, nil, nil, SessionConfig{Secret: "other"})

	token, _, err := other.IssueToken(&models.Session{ID: "sid-1"})
	require.NoError(t, err)

	sess, err := svc.Load(context.Background(), token)
	require.NoError(t, err)
	assert.NotEqual(t, "sid-1", sess.ID)
	assert.False(t, sess.Authenticated)
}

func TestFetchUserWithoutCredentialsSkipsBackend(t *testing.T) {
	identity := &fakeIdentity{profile: superadmin}
	svc, _, _ := newTestSessionService(identity)

	sess, err := svc.FetchUser(context.Background(), svc.newSession())
	require.NoError(t, err)
	assert.False(t, sess.Authenticated)
	assert.False(t, sess.Loading)
	assert.EqualValues(t, 0, identity.profileCalls)
}

func TestRevalidateUnauthorizedFlagsExpiry(t *testing.T) {
	identity := &fakeIdentity{profileErr: authFailure(http.StatusForbidden)}
	svc, store, _ := newTestSessionService(identity)

	sess := svc.newSession()
	sess.User = superadmin
	sess.Authenticated = true
	sess.Credentials = []models.BackendCookie{{Name: "session_token", Value: "stale"}}

	next, err := svc.Revalidate(context.Background(), sess)
	require.NoError(t, err)
	assert.True(t, next.Expired)
	assert.False(t, next.Authenticated)
	assert.Nil(t, next.User)
	assert.Empty(t, next.Credentials)

	stored, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.Expired)

	cleared, err := svc.AcknowledgeExpiry(context.Background(), next)
	require.NoError(t, err)
	assert.False(t, cleared.Expired)
}

func TestFetchUserTransportFailureLeavesStateUnchanged(t *testing.T) {
	identity := &fakeIdentity{profileErr: appErrors.Wrap(errors.New("dial tcp"), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "down")}
	svc, store, _ := newTestSessionService(identity)

	sess := svc.newSession()
	sess.Credentials = []models.BackendCookie{{Name: "session_token", Value: "abc"}}

	next, err := svc.FetchUser(context.Background(), sess)
	require.NoError(t, err)
	assert.True(t, next.Loading)
	assert.False(t, next.Authenticated)
	assert.Equal(t, sess.Credentials, next.Credentials)

	_, err = store.Get(context.Background(), sess.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFetchUserCoalescesConcurrentCalls(t *testing.T) {
	identity := &fakeIdentity{profile: superadmin, release: make(chan struct{})}
	svc, _, _ := newTestSessionService(identity)

	sess := svc.newSession()
	sess.Credentials = []models.BackendCookie{{Name: "session_token", Value: "abc"}}

	var wg sync.WaitGroup
	results := make([]*models.Session, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			local := *sess
			next, err := svc.FetchUser(context.Background(), &local)
			assert.NoError(t, err)
			results[i] = next
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&identity.profileCalls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(identity.release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&identity.profileCalls))
	for _, r := range results {
		require.NotNil(t, r)
		assert.True(t, r.Authenticated)
		assert.Equal(t, "u1", r.User.ID)
	}
}

func TestSwitchOrganizationRoundTrip(t *testing.T) {
	svc, _, audit := newTestSessionService(&fakeIdentity{})
	sess := svc.newSession()
	sess.User = superadmin
	sess.Authenticated = true
	actor := sess.Actor("127.0.0.1", "test")

	switched, err := svc.SwitchOrganization(context.Background(), sess, models.OrganizationRef{ID: "org-7", Name: "Acme"}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrgAdmin, switched.User.Role)
	assert.Equal(t, "Acme", switched.User.Organization)
	assert.True(t, switched.User.Impersonating)

	again, err := svc.SwitchOrganization(context.Background(), switched, models.OrganizationRef{ID: "org-8", Name: "Globex"}, actor)
	require.NoError(t, err)

	restored, err := svc.ResetRole(context.Background(), again, actor)
	require.NoError(t, err)
	assert.Equal(t, *superadmin, *restored.User)

	unchanged, err := svc.ResetRole(context.Background(), restored, actor)
	require.NoError(t, err)
	assert.Same(t, restored, unchanged)
	assert.Equal(t, []string{models.AuditActionImpersonate, models.AuditActionImpersonate, models.AuditActionResetRole}, audit.actions)
}

func TestSwitchOrganizationRequiresSuperadmin(t *testing.T) {
	svc, _, _ := newTestSessionService(&fakeIdentity{})
	sess := svc.newSession()
	sess.User = &models.SessionUser{ID: "u2", Role: models.RoleOrgSuperAdmin}
	sess.Authenticated = true

	_, err := svc.SwitchOrganization(context.Background(), sess, models.OrganizationRef{ID: "org-7", Name: "Acme"}, models.Actor{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRevalidateKeepsImpersonationOverlay(t *testing.T) {
	identity := &fakeIdentity{profile: superadmin}
	svc, _, _ := newTestSessionService(identity)

	overlaid := superadmin.WithOrganization(models.OrganizationRef{ID: "org-7", Name: "Acme"})
	sess := svc.newSession()
	sess.User = &overlaid
	sess.Authenticated = true
	sess.Credentials = []models.BackendCookie{{Name: "session_token", Value: "abc"}}

	next, err := svc.Revalidate(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, overlaid, *next.User)
}

func TestLogoutDeletesSession(t *testing.T) {
	identity := &fakeIdentity{user: superadmin, creds: []models.BackendCookie{{Name: "session_token", Value: "abc"}}}
	svc, store, _ := newTestSessionService(identity)

	sess, _, err := svc.Login(context.Background(), nil, models.LoginRequest{Email: "root@golabing.ai", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), sess.Actor("", "")))
	assert.EqualValues(t, 1, identity.logoutCalls)
	assert.Equal(t, 0, store.Len())
}
