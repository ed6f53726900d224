package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/events"
)

const (
	feedBuffer     = 32
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
	feedPongWait   = feedPingPeriod + 10*time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS already gates browser origins for the API.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// orderFeed pushes order and request events of the project to staff over a
// websocket. Delivery agents only receive events for records assigned to them.
func (h *handlers) orderFeed(c *gin.Context) {
	who := identityFrom(c)
	if !who.Role.IsStaff() {
		if who.IsGuest() {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		writeError(c, domain.ErrForbidden)
		return
	}
	if h.Events == nil {
		writeError(c, domain.ErrNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	feed, cancel := h.Events.Subscribe(projectFrom(c).ID, feedBuffer)
	defer cancel()

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-feed:
			if !ok {
				return
			}
			if !visibleTo(ev, who) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func visibleTo(ev events.Event, who domain.Identity) bool {
	if who.Role != domain.RoleDelivery {
		return true
	}
	switch rec := ev.Data.(type) {
	case *domain.Order:
		return rec.AssignedTo(who.AccountID)
	case *domain.Request:
		return rec.AssignedTo(who.AccountID)
	}
	return false
}
