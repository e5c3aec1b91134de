package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Hub manages overlay WebSocket connections and fans server events out to them
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	upgrader websocket.Upgrader
	config   HubConfig

	broadcastCh chan events.Event
}

// Client is one overlay connection. Its bound identity is the only credential
// for placement and pointer messages.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	hub  *Hub

	ConnectedAt time.Time
	pointer     *rate.Limiter

	mu       sync.RWMutex
	identity string
}

// HubConfig holds configuration for overlay connections
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	PointerRate     rate.Limit // non-terminal pointer events per second per client
	PointerBurst    int
	CheckOrigin     func(r *http.Request) bool
}

// MessageHandler receives client lifecycle callbacks from the read pump.
type MessageHandler interface {
	OnConnect(c *Client)
	OnMessage(c *Client, data []byte)
}

// DefaultHubConfig returns default overlay connection settings
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		PointerRate:     60,
		PointerBurst:    20,
		CheckOrigin: func(r *http.Request) bool {
			// overlays are loaded from the streaming software, any origin
			return true
		},
	}
}

// NewHub creates a hub. Start must be running for Broadcast to deliver.
func NewHub(config HubConfig) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan events.Event, 1000),
	}
}

// Start processes broadcasts until ctx is cancelled
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("overlay hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("overlay hub shutting down")
			h.closeAll()
			return
		case e := <-h.broadcastCh:
			h.handleBroadcast(e)
		}
	}
}

// UpgradeConnection upgrades an HTTP request and starts the client's pumps.
func (h *Hub) UpgradeConnection(w http.ResponseWriter, r *http.Request, handler MessageHandler) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Client{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, h.config.SendBuffer),
		hub:         h,
		ConnectedAt: time.Now(),
		pointer:     newPointerLimiter(h.config),
	}

	h.Register(c)

	go c.writePump()
	go c.readPump(handler)

	log.Info().
		Str("connection_id", c.ID).
		Str("remote", r.RemoteAddr).
		Msg("overlay connected")

	handler.OnConnect(c)
	return nil
}

// Register adds a client to the live set
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true
	log.Debug().
		Str("connection_id", c.ID).
		Int("total_connections", len(h.clients)).
		Msg("connection registered")
}

// Unregister removes a client. Calling it more than once is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)

	log.Info().
		Str("connection_id", c.ID).
		Str("identity", c.Identity()).
		Int("total_connections", len(h.clients)).
		Msg("connection unregistered")
}

// Broadcast queues an event for every client. It never blocks.
func (h *Hub) Broadcast(e events.Event) {
	select {
	case h.broadcastCh <- e:
	default:
		log.Warn().Str("event_type", string(e.Kind())).Msg("broadcast channel full, dropping message")
	}
}

// Send delivers an event to a single client.
func (h *Hub) Send(c *Client, e events.Event) {
	data, err := events.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	_, live := h.clients[c]
	full := false
	if live {
		select {
		case c.Send <- data:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.dropSlow(c)
	}
}

// BindIdentity associates an identity with a client, replacing any previous
// one. An empty identity unbinds.
func (h *Hub) BindIdentity(c *Client, identity string) {
	c.mu.Lock()
	prev := c.identity
	c.identity = identity
	c.mu.Unlock()

	if prev != identity {
		log.Info().
			Str("connection_id", c.ID).
			Str("identity", identity).
			Str("previous", prev).
			Msg("identity bound")
	}
}

// ClientCount returns the number of live clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleBroadcast(e events.Event) {
	// Marshal the event once
	data, err := events.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	total := len(h.clients)
	h.mu.RUnlock()

	for _, c := range slow {
		h.dropSlow(c)
	}

	log.Debug().
		Str("event_type", string(e.Kind())).
		Int("connections", total-len(slow)).
		Msg("event broadcasted")
}

// dropSlow removes a client whose send buffer is full.
func (h *Hub) dropSlow(c *Client) {
	log.Warn().
		Str("connection_id", c.ID).
		Str("identity", c.Identity()).
		Msg("connection send buffer full, closing connection")
	h.Unregister(c)
	if c.Conn != nil {
		c.Conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

// Identity returns the identity bound to the client, or "".
func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func newPointerLimiter(cfg HubConfig) *rate.Limiter {
	return rate.NewLimiter(cfg.PointerRate, cfg.PointerBurst)
}

// AllowPointer reports whether a non-terminal pointer event fits the rate limit.
func (c *Client) AllowPointer() bool {
	return c.pointer.Allow()
}

// writePump handles sending messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.Unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump(handler MessageHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		handler.OnMessage(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
