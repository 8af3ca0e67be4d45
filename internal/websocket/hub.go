package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/config"
)

// sendBuffer is the number of events queued per client and on the hub
const sendBuffer = 256

// HubConfig sizes and times the websocket connections of a hub
type HubConfig struct {
	MaxConnections  int
	ReadBufferSize  int
	WriteBufferSize int
	// PingInterval must be shorter than PongTimeout
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

// HubConfigFrom copies the websocket section of a profile
func HubConfigFrom(cfg config.WebSocketConfig) *HubConfig {
	return &HubConfig{
		MaxConnections:  cfg.MaxConnections,
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		PingInterval:    cfg.PingInterval,
		PongTimeout:     cfg.PongTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxMessageSize:  cfg.MaxMessageSize,
		AllowedOrigins:  cfg.AllowedOrigins,
	}
}

// Hub fans job events out to connected clients. Membership changes and
// events are serialized through Run.
type Hub struct {
	joins  chan *Client
	leaves chan *Client
	events chan Event
	done   chan struct{}

	cfg      *HubConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	members map[*Client]struct{}
	stats   HubStats
}

// HubStats counts connections and deliveries since the hub started
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}

// NewHub returns a hub that serves nothing until Run is started. A nil
// cfg uses the default profile.
func NewHub(cfg *HubConfig, logger *zap.Logger) *Hub {
	if cfg == nil {
		cfg = HubConfigFrom(config.GetDefaults().WebSocket)
	}
	h := &Hub{
		joins:   make(chan *Client),
		leaves:  make(chan *Client),
		events:  make(chan Event, sendBuffer),
		done:    make(chan struct{}),
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "hub")),
		members: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run serializes joins, leaves and events until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.logger.Debug("Hub running")

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			h.logger.Debug("Hub stopped")
			return
		case c := <-h.joins:
			h.join(c)
		case c := <-h.leaves:
			h.leave(c)
		case e := <-h.events:
			h.deliver(e, nil)
		}
	}
}

func connectionEvent(action string, c *Client) Event {
	return Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:    action,
			ClientID:  c.ID,
			ClientIP:  c.IP,
			UserAgent: c.UserAgent,
		},
	}
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	h.members[c] = struct{}{}
	h.stats.TotalConnections++
	h.stats.LastConnectionTime = time.Now()
	n := len(h.members)
	h.mu.Unlock()

	h.logger.Info("Websocket client joined",
		zap.String("client_id", c.ID),
		zap.String("ip", c.IP),
		zap.Int("clients", n),
	)
	h.deliver(connectionEvent("connected", c), c)
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	_, ok := h.members[c]
	if ok {
		h.drop(c)
	}
	n := len(h.members)
	h.mu.Unlock()
	if !ok {
		return
	}

	h.logger.Info("Websocket client left",
		zap.String("client_id", c.ID),
		zap.Int("clients", n),
	)
	h.deliver(connectionEvent("disconnected", c), nil)
}

// drop removes c and closes its queue; the caller holds mu
func (h *Hub) drop(c *Client) {
	delete(h.members, c)
	close(c.Send)
}

// deliver queues e on every member whose subscription matches, except
// skip. A member whose queue is full is dropped.
func (h *Hub) deliver(e Event, skip *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for c := range h.members {
		if c == skip || !c.wants(e) {
			continue
		}
		select {
		case c.Send <- e:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Websocket client too slow, disconnecting", zap.String("client_id", c.ID))
			h.drop(c)
		}
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.members {
		h.drop(c)
	}
}

// Broadcast queues an event for delivery and never blocks. Events that do
// not fit in the queue are counted and dropped.
func (h *Hub) Broadcast(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case h.events <- e:
		return
	default:
	}

	h.mu.Lock()
	h.stats.DroppedEvents++
	h.mu.Unlock()
	h.logger.Warn("Event queue full, dropping event",
		zap.String("type", string(e.Type)),
		zap.String("job_id", e.JobID),
	)
}

// HandleWebSocket upgrades the request and serves the client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if limit := h.cfg.MaxConnections; limit > 0 && h.ClientCount() >= limit {
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	now := time.Now()
	c := &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan Event, sendBuffer),
		ConnectedAt: now,
		LastPing:    now,
		IP:          remoteIP(r),
		UserAgent:   r.UserAgent(),
	}

	select {
	case h.joins <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writeLoop(h.cfg, h.logger)
	go c.readLoop(h)
}

// handleMessage applies a subscribe request or answers a ping
func (h *Hub) handleMessage(c *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		h.mu.Lock()
		c.Subscription = msg.Subscription
		h.mu.Unlock()
		h.logger.Debug("Subscription changed",
			zap.String("client_id", c.ID),
			zap.Any("subscription", msg.Subscription),
		)
	case "ping":
		h.mu.RLock()
		defer h.mu.RUnlock()
		if _, ok := h.members[c]; !ok {
			return
		}
		select {
		case c.Send <- Event{Type: EventTypePong, Timestamp: time.Now()}:
		default:
		}
	default:
		h.logger.Debug("Unknown client message", zap.String("type", msg.Type))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Stats returns a snapshot of the hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.stats
	s.ActiveConnections = int64(len(h.members))
	return s
}

// remoteIP prefers proxy headers over the connection address
func remoteIP(r *http.Request) string {
	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	return r.RemoteAddr
}
