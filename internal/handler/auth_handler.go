package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/dto"
	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/service"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/response"
)

const defaultLandingPath = "/dashboard"

type sessionAPI interface {
	Login(ctx context.Context, current *models.Session, req models.LoginRequest) (*models.Session, string, error)
	Logout(ctx context.Context, actor models.Actor) error
	FetchUser(ctx context.Context, sess *models.Session) (*models.Session, error)
	Revalidate(ctx context.Context, sess *models.Session) (*models.Session, error)
	SwitchOrganization(ctx context.Context, sess *models.Session, org models.OrganizationRef, actor models.Actor) (*models.Session, error)
	ResetRole(ctx context.Context, sess *models.Session, actor models.Actor) (*models.Session, error)
	AcknowledgeExpiry(ctx context.Context, sess *models.Session) (*models.Session, error)
}

// AuthHandler wires HTTP endpoints to the session service.
type AuthHandler struct {
	service sessionAPI
	cookie  middleware.CookieSettings
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc sessionAPI, cookie middleware.CookieSettings) *AuthHandler {
	return &AuthHandler{service: svc, cookie: cookie}
}

// Login godoc
// @Summary Sign in
// @Description Authenticate against the lab service and start a console session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Param redirect query string false "Page to return to after sign-in"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	sess, token, err := h.service.Login(c.Request.Context(), middleware.CurrentSession(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.WriteSessionCookie(c, h.cookie, token, sess.ExpiresAt)
	middleware.SetSession(c, sess)

	response.JSON(c, http.StatusOK, dto.SessionResponse{
		Session:  sess.View(),
		Redirect: service.SafeRedirect(c.Query("redirect"), defaultLandingPath),
	}, nil)
}

// Logout godoc
// @Summary Sign out
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.CurrentActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	middleware.ClearSessionCookie(c, h.cookie)
	response.JSON(c, http.StatusOK, dto.SessionResponse{Redirect: service.LoginPath}, nil)
}

// Me godoc
// @Summary Current session
// @Description Returns the session user, resolving the profile when needed. revalidate=true re-checks the lab session.
// @Tags Authentication
// @Produce json
// @Param revalidate query bool false "Re-check the lab service session"
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resolve := h.service.FetchUser
	if c.Query("revalidate") == "true" {
		resolve = h.service.Revalidate
	}
	next, err := resolve(c.Request.Context(), sess)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetSession(c, next)
	if next.Loading {
		c.Header("Retry-After", middleware.RetryAfterSeconds)
	}
	response.JSON(c, http.StatusOK, dto.SessionResponse{Session: next.View()}, nil)
}

// SwitchOrganization godoc
// @Summary Preview an organization as its admin
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.OrganizationRef true "Organization"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/switch-organization [post]
func (h *AuthHandler) SwitchOrganization(c *gin.Context) {
	var org models.OrganizationRef
	if err := c.ShouldBindJSON(&org); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid organization payload"))
		return
	}
	next, err := h.service.SwitchOrganization(c.Request.Context(), middleware.CurrentSession(c), org, middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetSession(c, next)
	response.JSON(c, http.StatusOK, dto.SessionResponse{Session: next.View(), Redirect: defaultLandingPath}, nil)
}

// ResetRole godoc
// @Summary Leave organization preview
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/reset-role [post]
func (h *AuthHandler) ResetRole(c *gin.Context) {
	next, err := h.service.ResetRole(c.Request.Context(), middleware.CurrentSession(c), middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetSession(c, next)
	response.JSON(c, http.StatusOK, dto.SessionResponse{Session: next.View(), Redirect: defaultLandingPath}, nil)
}

// AcknowledgeExpiry clears the session-expired notice.
func (h *AuthHandler) AcknowledgeExpiry(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	next, err := h.service.AcknowledgeExpiry(c.Request.Context(), sess)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetSession(c, next)
	response.JSON(c, http.StatusOK, dto.SessionResponse{Session: next.View(), Redirect: service.LoginPath}, nil)
}
