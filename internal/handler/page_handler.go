package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/service"
	appErrors "github.com/golabing/console/pkg/errors"
)

type viewerVerifier interface {
	VerifyViewerLink(vmID, token, sig string) (time.Time, error)
}

const fallbackShell = `<!doctype html><html><head><meta charset="utf-8"><title>GoLabing.ai</title></head>` +
	`<body><div id="root"></div></body></html>`

const invalidViewerPage = `<!doctype html><html><head><meta charset="utf-8"><title>Link unavailable</title></head>` +
	`<body><p>This viewer link is invalid or has expired. Reconnect from your lab.</p></body></html>`

// PageHandler serves the console single-page application. Every page route
// returns the same shell; the SPA renders the view for the path.
type PageHandler struct {
	staticDir string
	viewer    viewerVerifier
}

// NewPageHandler constructs the handler. An empty staticDir serves a bare shell.
func NewPageHandler(staticDir string, viewer viewerVerifier) *PageHandler {
	return &PageHandler{staticDir: staticDir, viewer: viewer}
}

// AssetsDir returns the directory holding built assets, or "" when none is configured.
func (h *PageHandler) AssetsDir() string {
	if h.staticDir == "" {
		return ""
	}
	return filepath.Join(h.staticDir, "assets")
}

// Shell serves the SPA entry point.
func (h *PageHandler) Shell(c *gin.Context) {
	h.serveShell(c)
}

// Dashboard serves guarded console pages. VM session pages additionally
// require a valid signed viewer link.
func (h *PageHandler) Dashboard(c *gin.Context) {
	path := c.Request.URL.Path
	if strings.HasPrefix(path, service.ViewerPathPrefix) {
		vmID := strings.TrimPrefix(path, service.ViewerPathPrefix)
		if vmID == "" || h.viewer == nil {
			h.rejectViewer(c)
			return
		}
		if _, err := h.viewer.VerifyViewerLink(vmID, c.Query("token"), c.Query("sig")); err != nil {
			h.rejectViewer(c)
			return
		}
	}
	h.serveShell(c)
}

func (h *PageHandler) rejectViewer(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusForbidden, "text/html; charset=utf-8", []byte(invalidViewerPage))
}

func (h *PageHandler) serveShell(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	if h.staticDir != "" {
		content, err := os.ReadFile(filepath.Join(h.staticDir, "index.html"))
		if err == nil {
			c.Data(http.StatusOK, "text/html; charset=utf-8", content)
			return
		}
		if !errors.Is(err, os.ErrNotExist) {
			_ = c.Error(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read console shell"))
		}
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fallbackShell))
}
