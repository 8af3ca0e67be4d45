package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket connection registered with a hub
type Client struct {
	ID   string
	Conn *websocket.Conn
	// Send is closed by the hub when the client is dropped
	Send chan Event
	// Subscription is guarded by the hub's lock; nil receives everything
	Subscription *SubscriptionRequest

	ConnectedAt time.Time
	LastPing    time.Time
	IP          string
	UserAgent   string
}

func (c *Client) wants(e Event) bool {
	return c.Subscription == nil || c.Subscription.matches(e)
}

// writeLoop drains Send onto the connection and keeps it alive with pings
func (c *Client) writeLoop(cfg *HubConfig, log *zap.Logger) {
	ping := time.NewTicker(cfg.PingInterval)
	defer func() {
		ping.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.Conn.WriteJSON(e); err != nil {
				log.Debug("Websocket write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		case <-ping.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop handles client messages until the connection fails, then
// leaves the hub.
func (c *Client) readLoop(h *Hub) {
	defer func() {
		select {
		case h.leaves <- c:
		case <-h.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(h.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.LastPing = time.Now()
		return c.Conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		var msg ClientMessage
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		h.handleMessage(c, msg)
	}
}
