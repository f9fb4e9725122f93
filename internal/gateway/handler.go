package gateway

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colorgrid/internal/roomcode"
)

// Handler serves the websocket upgrade endpoint.
type Handler struct {
	manager *Manager
}

// NewHandler creates a gateway HTTP handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes registers the gateway routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.handleRoomConnection)
	mux.HandleFunc("/ws/stats", h.handleStats)
}

func (h *Handler) handleRoomConnection(w http.ResponseWriter, r *http.Request) {
	room := roomcode.Normalize(r.URL.Query().Get("room"))
	if !roomcode.Valid(room) {
		http.Error(w, "valid room code is required", http.StatusBadRequest)
		return
	}
	nickname := r.URL.Query().Get("nickname")
	if nickname == "" {
		http.Error(w, "nickname is required", http.StatusBadRequest)
		return
	}

	if err := h.manager.Upgrade(w, r, room, nickname); err != nil {
		log.Error().Err(err).Str("room_code", room).Msg("websocket upgrade failed")
		// Upgrade has already written the handshake error when it fails
		// mid-upgrade; nothing more to send.
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	connections, rooms := h.manager.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total_connections":%d,"active_rooms":%d}`, connections, rooms)
}
