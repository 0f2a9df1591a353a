package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/pkg/logger"
	"github.com/golabing/console/pkg/response"
)

// ContextSessionKey is the gin context key storing the console session.
const ContextSessionKey = "consoleSession"

// SessionLoader resolves a console session from its cookie token.
type SessionLoader interface {
	Load(ctx context.Context, token string) (*models.Session, error)
}

// CookieSettings describes the session cookie.
type CookieSettings struct {
	Name   string
	Secure bool
}

func (s CookieSettings) name() string {
	if s.Name == "" {
		return "golabing_session"
	}
	return s.Name
}

// Session attaches the caller's session to the request. Requests without a
// valid cookie get a fresh anonymous session.
func Session(loader SessionLoader, cookie CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookie.name())
		sess, err := loader.Load(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		SetSession(c, sess)
		c.Next()
	}
}

// SetSession replaces the session stored on the request.
func SetSession(c *gin.Context, sess *models.Session) {
	c.Set(ContextSessionKey, sess)
	if sess != nil && sess.User != nil {
		c.Set(logger.ActorKey, sess.User.ID)
	}
}

// CurrentSession returns the session stored on the request, or nil.
func CurrentSession(c *gin.Context) *models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	sess, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return sess
}

// CurrentActor describes the caller of the current request.
func CurrentActor(c *gin.Context) models.Actor {
	return CurrentSession(c).Actor(c.ClientIP(), c.GetHeader("User-Agent"))
}

// WriteSessionCookie stores token in the session cookie until expiresAt.
func WriteSessionCookie(c *gin.Context, cookie CookieSettings, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.name(), token, maxAge, "/", "", cookie.Secure, true)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, cookie CookieSettings) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.name(), "", -1, "/", "", cookie.Secure, true)
}
