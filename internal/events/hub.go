// Package events fans order and request changes out to live operator
// dashboards within one process.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-orders/internal/logging"
)

const (
	OrderCreated         = "order.created"
	OrderStatusChanged   = "order.status_changed"
	OrderDeliveryChanged = "order.delivery_changed"
	RequestCreated       = "request.created"
	RequestStatusChanged = "request.status_changed"
)

type Event struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId"`
	ID        string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
	Data      any       `json:"data,omitempty"`
}

type subscriber struct {
	projectID string
	ch        chan Event
}

// Hub delivers events to subscribers of the same project. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		logger: logging.OrNop(logger).Named("events"),
	}
}

func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.projectID != ev.ProjectID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("type", ev.Type), zap.String("id", ev.ID))
		}
	}
}

// Subscribe registers a listener for projectID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(projectID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	s := &subscriber{projectID: projectID, ch: make(chan Event, buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Subscribers reports the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
