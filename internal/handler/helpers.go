package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/forumchat/internal/game"
	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service and game errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrChatNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrGameNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnknownGame):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrGameFull),
		errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrGameNotInProgress),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrInvalidMove):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Errorf("handler: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
