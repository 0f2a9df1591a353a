package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/repository"
	appErrors "github.com/golabing/console/pkg/errors"
)

// Profile fetch outcomes used as metric labels.
const (
	ProfileOutcomeSuccess      = "success"
	ProfileOutcomeUnauthorized = "unauthorized"
	ProfileOutcomeError        = "error"
	ProfileOutcomeSkipped      = "skipped"
)

type sessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type identityGateway interface {
	Login(ctx context.Context, email, password string) (*models.SessionUser, []models.BackendCookie, error)
	Profile(ctx context.Context, creds []models.BackendCookie) (*models.SessionUser, error)
	Logout(ctx context.Context, email string, creds []models.BackendCookie) error
}

type auditRecorder interface {
	Record(actor models.Actor, action, resource, resourceID string, details interface{})
}

// SessionConfig defines session token and lifetime settings.
type SessionConfig struct {
	Secret         string
	TTL            time.Duration
	Issuer         string
	ProfileTimeout time.Duration
}

// SessionService owns the console session: login, logout, profile resolution
// and organization impersonation.
type SessionService struct {
	store     sessionStore
	identity  identityGateway
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
	group     singleflight.Group
	now       func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(store sessionStore, identity identityGateway, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.ProfileTimeout <= 0 {
		config.ProfileTimeout = 10 * time.Second
	}
	if config.Issuer == "" {
		config.Issuer = "golabing-console"
	}
	return &SessionService{
		store:     store,
		identity:  identity,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Load resolves the session named by token. A missing, invalid or expired
// token yields a fresh anonymous session that is not persisted until it
// changes.
func (s *SessionService) Load(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return s.newSession(), nil
	}
	sid, err := s.ParseToken(token)
	if err != nil {
		s.logger.Debug("discarding session token", zap.Error(err))
		return s.newSession(), nil
	}
	sess, err := s.store.Get(ctx, sid)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return s.newSession(), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !sess.ExpiresAt.IsZero() && s.now().After(sess.ExpiresAt) {
		return s.newSession(), nil
	}
	return sess, nil
}

// Login authenticates against the lab backend and starts a new session. The
// previous session record, if any, is discarded.
func (s *SessionService) Login(ctx context.Context, current *models.Session, req models.LoginRequest) (*models.Session, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and password are required")
	}

	user, creds, err := s.identity.Login(ctx, req.Email, req.Password)
	if err != nil {
		if repository.IsAuthFailure(err) {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInvalidCredentials.Code, appErrors.ErrInvalidCredentials.Status, appErrors.ErrInvalidCredentials.Message)
		}
		return nil, "", err
	}
	if user == nil {
		return nil, "", appErrors.Clone(appErrors.ErrUpstream, "lab service returned no user for this login")
	}

	if current != nil && current.ID != "" {
		if err := s.store.Delete(ctx, current.ID); err != nil {
			s.logger.Warn("failed to discard previous session", zap.String("session_id", current.ID), zap.Error(err))
		}
	}

	sess := s.newSession()
	sess.User = user
	sess.Authenticated = true
	sess.Credentials = creds
	if err := s.save(ctx, sess); err != nil {
		return nil, "", err
	}

	token, _, err := s.IssueToken(sess)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}

	s.record(sess.Actor(req.IP, req.UserAgent), models.AuditActionLogin, "session", user.ID, map[string]string{"status": "success"})
	return sess, token, nil
}

// Logout ends the backend session best effort and deletes the session record.
func (s *SessionService) Logout(ctx context.Context, actor models.Actor) error {
	if actor.User != nil && len(actor.Credentials) > 0 {
		if err := s.identity.Logout(ctx, actor.User.Email, actor.Credentials); err != nil {
			s.logger.Warn("backend logout failed", zap.String("user_id", actor.User.ID), zap.Error(err))
		}
	}
	if actor.SessionID != "" {
		if err := s.store.Delete(ctx, actor.SessionID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end session")
		}
	}
	if actor.User != nil {
		s.record(actor, models.AuditActionLogout, "session", actor.User.ID, nil)
	}
	return nil
}

// FetchUser resolves the profile of an unauthenticated session. An
// authenticated session is returned unchanged.
func (s *SessionService) FetchUser(ctx context.Context, sess *models.Session) (*models.Session, error) {
	if sess.Authenticated && sess.User != nil {
		return sess, nil
	}
	return s.resolveProfile(ctx, sess)
}

// Revalidate re-reads the profile even for an authenticated session so an
// expired backend session is detected.
func (s *SessionService) Revalidate(ctx context.Context, sess *models.Session) (*models.Session, error) {
	return s.resolveProfile(ctx, sess)
}

func (s *SessionService) resolveProfile(ctx context.Context, sess *models.Session) (*models.Session, error) {
	if len(sess.Credentials) == 0 {
		s.metrics.RecordProfileFetch(ProfileOutcomeSkipped)
		next := *sess
		next.Authenticated = false
		next.Loading = false
		return &next, nil
	}

	result, err, _ := s.group.Do(sess.ID, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ProfileTimeout)
		defer cancel()
		return s.applyProfile(fetchCtx, *sess)
	})
	if err != nil {
		return nil, err
	}
	next := result.(models.Session)
	return &next, nil
}

func (s *SessionService) applyProfile(ctx context.Context, sess models.Session) (models.Session, error) {
	user, err := s.identity.Profile(ctx, sess.Credentials)
	switch {
	case err == nil && user != nil:
		s.metrics.RecordProfileFetch(ProfileOutcomeSuccess)
		if prev := sess.User; prev != nil && prev.Impersonating && prev.ID == user.ID {
			overlaid := user.WithOrganization(models.OrganizationRef{ID: prev.OrgID, Name: prev.Organization, Role: prev.Role})
			user = &overlaid
		}
		sess.User = user
		sess.Authenticated = true
		sess.Loading = false
		sess.Expired = false
		return sess, s.save(ctx, &sess)

	case err == nil || repository.IsAuthFailure(err):
		s.metrics.RecordProfileFetch(ProfileOutcomeUnauthorized)
		sess.Expired = sess.Authenticated
		sess.Authenticated = false
		sess.Loading = false
		sess.User = nil
		sess.Credentials = nil
		return sess, s.save(ctx, &sess)

	default:
		s.metrics.RecordProfileFetch(ProfileOutcomeError)
		s.logger.Warn("profile fetch failed", zap.String("session_id", sess.ID), zap.Error(err))
		sess.Loading = sess.User == nil
		return sess, nil
	}
}

// SwitchOrganization overlays the org-admin view of org onto a superadmin's
// session.
func (s *SessionService) SwitchOrganization(ctx context.Context, sess *models.Session, org models.OrganizationRef, actor models.Actor) (*models.Session, error) {
	if sess == nil || !sess.Authenticated || sess.User == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to switch organization")
	}
	if err := s.validator.Struct(org); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "organization id and name are required")
	}
	original := sess.User.WithoutImpersonation()
	if !original.Capabilities().CanImpersonate {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only superadmins can switch organization")
	}

	overlaid := sess.User.WithOrganization(org)
	next := *sess
	next.User = &overlaid
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	s.record(actor, models.AuditActionImpersonate, "organization", org.ID, map[string]string{"organization": org.Name, "role": string(overlaid.Role)})
	return &next, nil
}

// ResetRole restores the identity saved by SwitchOrganization. It is a no-op
// unless the session is impersonating.
func (s *SessionService) ResetRole(ctx context.Context, sess *models.Session, actor models.Actor) (*models.Session, error) {
	if sess == nil || sess.User == nil || !sess.User.Impersonating {
		return sess, nil
	}
	restored := sess.User.WithoutImpersonation()
	next := *sess
	next.User = &restored
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	s.record(actor, models.AuditActionResetRole, "organization", sess.User.OrgID, nil)
	return &next, nil
}

// AcknowledgeExpiry clears the session-expired flag once the user has seen it.
func (s *SessionService) AcknowledgeExpiry(ctx context.Context, sess *models.Session) (*models.Session, error) {
	if !sess.Expired {
		return sess, nil
	}
	next := *sess
	next.Expired = false
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// IssueToken signs the cookie token naming sess.
func (s *SessionService) IssueToken(sess *models.Session) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := sess.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = issuedAt.Add(s.config.TTL)
	}
	claims := models.SessionClaims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken validates a cookie token and returns the session id it names.
func (s *SessionService) ParseToken(raw string) (string, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.SessionID == "" {
		return "", errors.New("session token carries no session id")
	}
	return claims.SessionID, nil
}

func (s *SessionService) newSession() *models.Session {
	now := s.now().UTC()
	return &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.config.TTL),
	}
}

func (s *SessionService) save(ctx context.Context, sess *models.Session) error {
	now := s.now().UTC()
	sess.UpdatedAt = now
	ttl := sess.ExpiresAt.Sub(now)
	if ttl <= 0 {
		ttl = s.config.TTL
		sess.ExpiresAt = now.Add(ttl)
	}
	if err := s.store.Save(ctx, sess, ttl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	return nil
}

func (s *SessionService) record(actor models.Actor, action, resource, resourceID string, details interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, action, resource, resourceID, details)
}
