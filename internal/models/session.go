package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionUser is the authenticated identity held by a console session.
type SessionUser struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	OrgID        string `json:"org_id,omitempty"`
	Organization string `json:"organization,omitempty"`

	Impersonating        bool   `json:"impersonating,omitempty"`
	OriginalRole         Role   `json:"originalRole,omitempty"`
	OriginalOrganization string `json:"originalOrganization,omitempty"`
	OriginalOrgID        string `json:"originalOrgId,omitempty"`
}

// OrganizationRef identifies the organization a superadmin previews.
type OrganizationRef struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
	Role Role   `json:"role"`
}

// WithOrganization returns a copy of u overlaid with the organization's admin view.
// The pre-impersonation role and organization are kept from the first switch so a
// later reset always lands on the real identity.
func (u SessionUser) WithOrganization(org OrganizationRef) SessionUser {
	role := org.Role
	if !role.Valid() {
		role = RoleOrgAdmin
	}
	next := u
	if !u.Impersonating {
		next.OriginalRole = u.Role
		next.OriginalOrganization = u.Organization
		next.OriginalOrgID = u.OrgID
	}
	next.Role = role
	next.Organization = org.Name
	next.OrgID = org.ID
	next.Impersonating = true
	return next
}

// WithoutImpersonation restores the identity saved by WithOrganization. It
// returns u unchanged when no impersonation is active.
func (u SessionUser) WithoutImpersonation() SessionUser {
	if !u.Impersonating {
		return u
	}
	next := u
	next.Role = u.OriginalRole
	next.Organization = u.OriginalOrganization
	next.OrgID = u.OriginalOrgID
	next.Impersonating = false
	next.OriginalRole = ""
	next.OriginalOrganization = ""
	next.OriginalOrgID = ""
	return next
}

// Capabilities returns the capability set of the user's effective role.
func (u *SessionUser) Capabilities() Capabilities {
	if u == nil {
		return Capabilities{}
	}
	return CapabilitiesFor(u.Role)
}

// BackendCookie is a credential cookie issued by the lab backend and replayed on
// the user's behalf.
type BackendCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session is the persisted console session record.
type Session struct {
	ID            string          `json:"id"`
	User          *SessionUser    `json:"user,omitempty"`
	Authenticated bool            `json:"authenticated"`
	Loading       bool            `json:"loading"`
	Expired       bool            `json:"expired"`
	Credentials   []BackendCookie `json:"credentials,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

// SessionView is the client-facing projection of a session.
type SessionView struct {
	User          *SessionUser `json:"user"`
	Authenticated bool         `json:"isAuthenticated"`
	Loading       bool         `json:"isLoading"`
	Expired       bool         `json:"showSessionExpiryModal"`
	Capabilities  Capabilities `json:"capabilities"`
}

// View projects the session for API responses. Credentials never leave the server.
func (s *Session) View() SessionView {
	if s == nil {
		return SessionView{}
	}
	return SessionView{
		User:          s.User,
		Authenticated: s.Authenticated,
		Loading:       s.Loading,
		Expired:       s.Expired,
		Capabilities:  s.User.Capabilities(),
	}
}

// SessionClaims is the payload of the signed session cookie.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// LoginRequest holds credentials for signing in.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// Actor is the caller of a console operation: the session user plus the
// backend credentials and client metadata of the request.
type Actor struct {
	SessionID   string
	User        *SessionUser
	Credentials []BackendCookie
	IP          string
	UserAgent   string
}

// UserID returns the actor's user id, or "" when anonymous.
func (a Actor) UserID() string {
	if a.User == nil {
		return ""
	}
	return a.User.ID
}

// Capabilities returns the capability set of the actor's effective role.
func (a Actor) Capabilities() Capabilities {
	return a.User.Capabilities()
}

// Actor builds the actor for an operation performed within s.
func (s *Session) Actor(ip, userAgent string) Actor {
	if s == nil {
		return Actor{IP: ip, UserAgent: userAgent}
	}
	return Actor{
		SessionID:   s.ID,
		User:        s.User,
		Credentials: s.Credentials,
		IP:          ip,
		UserAgent:   userAgent,
	}
}
