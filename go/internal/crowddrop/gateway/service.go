package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service bundles the overlay hub with its HTTP handlers
type Service struct {
	hub          *Hub
	wsHandler    *WebSocketHandler
	stateHandler *StateHandler
	overlay      *OverlayHandler
}

// Config holds configuration for the gateway service
type Config struct {
	OverlayDir string
}

// NewService creates the gateway around an existing hub, which the round
// session also broadcasts through.
func NewService(config Config, hub *Hub, game Game) *Service {
	return &Service{
		hub:          hub,
		wsHandler:    NewWebSocketHandler(hub, game),
		stateHandler: NewStateHandler(game, hub),
		overlay:      NewOverlayHandler(config.OverlayDir),
	}
}

// Start runs the hub until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting overlay gateway")
	s.hub.Start(ctx)
	log.Info().Msg("overlay gateway stopped")
}

// RegisterRoutes registers every gateway HTTP route
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	s.overlay.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}
