package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/crowddrop/go/internal/crowddrop/events"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/round"
	"github.com/rs/zerolog/log"
)

// Game is what the gateway needs from the round session
type Game interface {
	Snapshot() events.State
	CommitPlacement(identity, slot string) (events.Placement, error)
	ForwardPointer(identity string, p round.Pointer) error
}

// WebSocketHandler upgrades overlay connections and handles their messages
type WebSocketHandler struct {
	hub  *Hub
	game Game
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub, game Game) *WebSocketHandler {
	return &WebSocketHandler{
		hub:  hub,
		game: game,
	}
}

// HandleConnection handles GET /ws
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.UpgradeConnection(w, r, h); err != nil {
		// the upgrader has already written an HTTP error
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
	}
}

// OnConnect sends the snapshot every new client starts from.
func (h *WebSocketHandler) OnConnect(c *Client) {
	h.hub.Send(c, h.game.Snapshot())
}

func (h *WebSocketHandler) OnMessage(c *Client, data []byte) {
	msg, err := DecodeClientMessage(data)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("dropping client message")
		return
	}
	h.HandleClientEvent(c, msg)
}

// HandleClientEvent dispatches one decoded client message. Placement and
// pointer messages are only honored for the client bound to the chosen placer;
// everything else is dropped without a reply.
func (h *WebSocketHandler) HandleClientEvent(c *Client, msg ClientMessage) {
	switch m := msg.(type) {
	case Ping:
		h.hub.Send(c, events.Pong{T: time.Now().UnixMilli()})

	case OverlayHello:
		h.hub.BindIdentity(c, m.Identity)
		h.hub.Send(c, h.game.Snapshot())

	case StateRequest:
		h.hub.Send(c, h.game.Snapshot())

	case PlaceChoice:
		identity := c.Identity()
		if identity == "" {
			return
		}
		if _, err := h.game.CommitPlacement(identity, m.Place); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Str("identity", identity).Msg("place_choice ignored")
		}

	case PointerEvent:
		identity := c.Identity()
		if identity == "" {
			return
		}
		if !m.Terminate && !c.AllowPointer() {
			return
		}
		err := h.game.ForwardPointer(identity, round.Pointer{
			X:         m.X,
			Y:         m.Y,
			VX:        m.VX,
			VY:        m.VY,
			Terminal:  m.Terminate,
			Timestamp: m.Timestamp,
		})
		switch {
		case err == nil:
		case errors.Is(err, round.ErrNotPlacer), errors.Is(err, round.ErrNoPendingPlacement):
			log.Debug().Err(err).Str("connection_id", c.ID).Str("identity", identity).Msg("pointer event ignored")
		default:
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("pointer event not delivered")
		}
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/", h.HandleConnection)
}
