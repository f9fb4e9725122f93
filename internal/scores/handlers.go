package scores

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Handler serves the scores HTTP API:
//
//	POST /color-game/scores          insert one score record
//	GET  /color-game/scores?room=X   per-room leaderboard
type Handler struct {
	repo Repository
}

// NewHandler creates a scores HTTP handler over repo.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers the scores routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/color-game/scores", h.handleScores)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleLeaderboard(w, r)
	case http.MethodPost:
		h.handleInsert(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		writeError(w, http.StatusBadRequest, "room parameter required")
		return
	}

	board, err := h.repo.Leaderboard(r.Context(), room)
	if err != nil {
		log.Error().Err(err).Str("room_code", room).Msg("leaderboard query failed")
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) handleInsert(w http.ResponseWriter, r *http.Request) {
	var entry ReportEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateEntry(entry); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	score := Score{
		RoomCode:    entry.RoomCode,
		Nickname:    entry.Nickname,
		Role:        string(entry.Role),
		Points:      entry.Points,
		GuessNumber: entry.GuessNumber,
	}
	if entry.TargetCell != "" {
		cell := entry.TargetCell
		score.TargetCell = &cell
	}

	inserted, err := h.repo.InsertScore(r.Context(), score)
	if err != nil {
		log.Error().Err(err).Str("room_code", entry.RoomCode).Msg("score insert failed")
		writeError(w, http.StatusInternalServerError, "failed to insert score")
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

func validateEntry(e ReportEntry) error {
	if e.RoomCode == "" || e.Nickname == "" || e.Role == "" {
		return errors.New("roomCode, nickname, and role are required")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
