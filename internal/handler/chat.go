package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forumchat/internal/service"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type messagePayload struct {
	Content string    `json:"msg"`
	Sender  string    `json:"msgFrom"`
	SentAt  time.Time `json:"msgDateTime"`
}

type createChatRequest struct {
	Participants []string         `json:"participants"`
	Messages     []messagePayload `json:"messages"`
}

// CreateChat creates a chat with its participant set and optional initial
// messages, returns 200 with the hydrated chat.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	initial := make([]service.NewMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		initial = append(initial, service.NewMessage{Content: m.Content, Sender: m.Sender, SentAt: m.SentAt})
	}

	chat, err := h.chats.CreateChat(r.Context(), req.Participants, initial)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// AddMessage appends one message to an existing chat.
func (h *ChatHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req messagePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	chat, err := h.chats.AppendMessage(r.Context(), chatID, req.Content, req.Sender, req.SentAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// GetChat returns the hydrated chat by id.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chats.GetChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

type addParticipantRequest struct {
	UserID string `json:"userId"`
}

// AddParticipant adds a registered user to the chat. Idempotent.
func (h *ChatHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	chat, err := h.chats.AddParticipant(r.Context(), chatID, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// GetChatsByUser lists every chat the user participates in. Chats that
// fail to hydrate are skipped, not fatal for the whole list.
func (h *ChatHandler) GetChatsByUser(w http.ResponseWriter, r *http.Request) {
	items, err := h.chats.ListChatsFor(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	chats := make([]any, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			continue
		}
		chats = append(chats, item.Chat)
	}
	writeJSON(w, http.StatusOK, chats)
}
