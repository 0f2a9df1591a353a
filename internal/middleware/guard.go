package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/service"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/response"
)

// RetryAfterSeconds is advertised while a profile is still loading.
const RetryAfterSeconds = "2"

// ProfileResolver resolves the user behind a session that is not yet authenticated.
type ProfileResolver interface {
	FetchUser(ctx context.Context, sess *models.Session) (*models.Session, error)
}

const loadingPage = `<!doctype html><html><head><meta http-equiv="refresh" content="2"><title>Loading</title></head>` +
	`<body><p>Loading your session&hellip;</p></body></html>`

// evaluate runs the guard for allowed, resolving the profile at most once.
func evaluate(c *gin.Context, resolver ProfileResolver, allowed []models.Role) (service.GuardDecision, error) {
	sess := CurrentSession(c)
	decision := service.Decide(service.StateOf(sess, false), allowed)
	if decision != service.GuardFetchProfile {
		return decision, nil
	}
	if sess == nil {
		return service.GuardRedirectLogin, nil
	}
	next, err := resolver.FetchUser(c.Request.Context(), sess)
	if err != nil {
		return service.GuardRedirectLogin, err
	}
	SetSession(c, next)
	return service.Decide(service.StateOf(next, true), allowed), nil
}

// PageGuard protects console pages according to service.ConsoleRoutes.
// Unprotected paths pass through.
func PageGuard(resolver ProfileResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, protected := service.PolicyFor(c.Request.URL.Path)
		if !protected {
			c.Next()
			return
		}
		decision, err := evaluate(c, resolver, allowed)
		if err != nil {
			_ = c.Error(err)
		}
		switch decision {
		case service.GuardRender:
			c.Next()
		case service.GuardLoading:
			c.Header("Retry-After", RetryAfterSeconds)
			c.Header("Cache-Control", "no-store")
			c.Data(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(loadingPage))
			c.Abort()
		case service.GuardRedirectUnauthorized:
			c.Redirect(http.StatusFound, service.UnauthorizedPath)
			c.Abort()
		default:
			c.Redirect(http.StatusFound, service.LoginRedirect(c.Request.URL.RequestURI()))
			c.Abort()
		}
	}
}

// APIGuard protects API routes. An empty roles list admits any authenticated
// user. Rejections carry the page the client should navigate to in
// meta.redirect.
func APIGuard(resolver ProfileResolver, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := evaluate(c, resolver, roles)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		switch decision {
		case service.GuardRender:
			c.Next()
		case service.GuardLoading:
			c.Header("Retry-After", RetryAfterSeconds)
			response.ErrorWithMeta(c,
				appErrors.New(appErrors.ErrUpstream.Code, http.StatusServiceUnavailable, "your profile is still loading, please retry"),
				map[string]interface{}{"retryAfter": RetryAfterSeconds})
			c.Abort()
		case service.GuardRedirectUnauthorized:
			response.ErrorWithMeta(c, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this area"),
				map[string]interface{}{"redirect": service.UnauthorizedPath})
			c.Abort()
		default:
			expired := false
			if sess := CurrentSession(c); sess != nil {
				expired = sess.Expired
			}
			err := appErrors.ErrUnauthorized
			if expired {
				err = appErrors.ErrSessionExpired
			}
			response.ErrorWithMeta(c, err, map[string]interface{}{
				"redirect":       service.LoginRedirect(refererPath(c)),
				"sessionExpired": expired,
			})
			c.Abort()
		}
	}
}

// RequireCapability admits callers whose effective role grants capability.
// It must run after APIGuard.
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentActor(c).Capabilities().Has(capability) {
			response.ErrorWithMeta(c, appErrors.Clone(appErrors.ErrForbidden, "your role does not allow this action"),
				map[string]interface{}{"redirect": service.UnauthorizedPath})
			c.Abort()
			return
		}
		c.Next()
	}
}

// refererPath returns the console page that issued an API call, so the
// login page can send the user back to it.
func refererPath(c *gin.Context) string {
	ref := c.GetHeader("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Path == "" {
		return ""
	}
	return service.SafeRedirect(u.RequestURI(), "")
}
