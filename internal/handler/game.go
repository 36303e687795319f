package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forumchat/internal/model"
	"github.com/forumchat/internal/service"
)

type GameHandler struct {
	games *service.GameService
}

func NewGameHandler(games *service.GameService) *GameHandler {
	return &GameHandler{games: games}
}

type createGameRequest struct {
	GameType string `json:"gameType"`
}

func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	g, err := h.games.CreateGame(r.Context(), req.GameType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type gameActionRequest struct {
	GameID   string `json:"gameID"`
	PlayerID string `json:"playerID"`
}

func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req gameActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	g, err := h.games.Join(r.Context(), req.GameID, req.PlayerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// LeaveGame unseats the player; leaving a running game forfeits it.
func (h *GameHandler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	var req gameActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	g, err := h.games.Leave(r.Context(), req.GameID, req.PlayerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ListGames returns games, optionally filtered by ?status=.
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	status := model.GameStatus(r.URL.Query().Get("status"))
	games, err := h.games.ListGames(r.Context(), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.games.GetGame(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
