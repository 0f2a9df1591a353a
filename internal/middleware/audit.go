package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/models"
)

// AuditRecorder accepts audit entries.
type AuditRecorder interface {
	Record(actor models.Actor, action, resource, resourceID string, details interface{})
}

// Audit records an entry after every successful request on the route.
func Audit(recorder AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		recorder.Record(CurrentActor(c), action, resource, c.Param("id"), map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"query":   c.Request.URL.RawQuery,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})
	}
}
