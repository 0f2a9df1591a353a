package service

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Console events delivered to browser tabs.
const (
	EventCartChanged   = "cart-changed"
	EventCartModalOpen = "cart-modal-open"
)

// Event is one message pushed to a user's open tabs.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

// EventHub fans events out to every subscription of a user. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[string][]chan Event
	buffer      int
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewEventHub constructs an EventHub with the per-subscriber buffer size.
func NewEventHub(buffer int, metrics *MetricsService, logger *zap.Logger) *EventHub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{subscribers: make(map[string][]chan Event), buffer: buffer, metrics: metrics, logger: logger}
}

// Subscribe registers a new stream for userID. The returned cancel function
// must be called when the stream ends.
func (h *EventHub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subscribers[userID] = append(h.subscribers[userID], ch)
	h.mu.Unlock()
	h.metrics.EventClientConnected(1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.unsubscribe(userID, ch)
			h.metrics.EventClientConnected(-1)
		})
	}
}

func (h *EventHub) unsubscribe(userID string, target chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.subscribers[userID]
	remaining := current[:0]
	for _, ch := range current {
		if ch != target {
			remaining = append(remaining, ch)
		}
	}
	if len(remaining) == 0 {
		delete(h.subscribers, userID)
		return
	}
	h.subscribers[userID] = remaining
}

// Publish delivers an event to every stream of userID.
func (h *EventHub) Publish(userID, name string, data interface{}) {
	if h == nil || userID == "" {
		return
	}
	h.mu.Lock()
	channels := append([]chan Event(nil), h.subscribers[userID]...)
	h.mu.Unlock()

	event := Event{Name: name, Data: data, At: time.Now().UTC()}
	for _, ch := range channels {
		select {
		case ch <- event:
		default:
			h.metrics.EventDropped()
			h.logger.Warn("dropping event for slow subscriber", zap.String("user_id", userID), zap.String("event", name))
		}
	}
}

// Subscribers reports the number of open streams for userID.
func (h *EventHub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}
