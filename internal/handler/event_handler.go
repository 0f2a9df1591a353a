package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/service"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/response"
)

type eventSubscriber interface {
	Subscribe(userID string) (<-chan service.Event, func())
}

// EventHandler streams console events to the signed-in user's tabs.
type EventHandler struct {
	hub       eventSubscriber
	heartbeat time.Duration
}

// NewEventHandler constructs the handler. A non-positive heartbeat defaults to 25s.
func NewEventHandler(hub eventSubscriber, heartbeat time.Duration) *EventHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &EventHandler{hub: hub, heartbeat: heartbeat}
}

// Stream godoc
// @Summary Server-sent console events
// @Description Pushes cart-changed and cart-modal-open events to every open tab of the user
// @Tags Events
// @Produce text/event-stream
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	if actor.UserID() == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to receive events"))
		return
	}
	events, cancel := h.hub.Subscribe(actor.UserID())
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Name, event)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
