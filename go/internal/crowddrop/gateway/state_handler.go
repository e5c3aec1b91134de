package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/mcdev12/crowddrop/go/internal/crowddrop/events"
	"github.com/rs/zerolog/log"
)

// StateProvider returns the current round snapshot
type StateProvider interface {
	Snapshot() events.State
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	OK          bool  `json:"ok"`
	Clients     int   `json:"clients"`
	RoundActive bool  `json:"round_active"`
	RoundID     int64 `json:"round_id"`
	Pending     bool  `json:"pending"`
}

// StateHandler handles HTTP requests for round state
type StateHandler struct {
	stateProvider StateProvider
	hub           *Hub
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider, hub *Hub) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
		hub:           hub,
	}
}

// HandleGetState handles GET /api/state with the same body a client gets on connect
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := events.Marshal(h.stateProvider.Snapshot())
	if err != nil {
		log.Error().Err(err).Msg("failed to encode state response")
		http.Error(w, "Failed to get state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// HandleHealth handles GET /health
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := h.stateProvider.Snapshot()
	resp := HealthResponse{
		OK:          true,
		Clients:     h.hub.ClientCount(),
		RoundActive: st.Round.Active,
		RoundID:     st.Round.RoundID,
		Pending:     st.PendingPlacement != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode health response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.HandleGetState)
	mux.HandleFunc("/health", h.HandleHealth)
}
