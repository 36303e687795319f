package ws

import "github.com/forumchat/internal/model"

type EventType string

// Client → server events.
const (
	EventJoinChat  EventType = "joinChat"
	EventLeaveChat EventType = "leaveChat"
	EventJoinGame  EventType = "joinGame"
	EventLeaveGame EventType = "leaveGame"
	EventMakeMove  EventType = "makeMove"
)

// Server → client events.
const (
	EventChatUpdate EventType = "chatUpdate"
	EventGameUpdate EventType = "gameUpdate"
	EventGameError  EventType = "gameError"
	EventError      EventType = "error"
)

// Chat update kinds carried inside a chatUpdate payload.
const (
	ChatUpdateCreated    = "created"
	ChatUpdateNewMessage = "newMessage"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type   EventType    `json:"type"`
	ChatID string       `json:"chatID,omitempty"`
	GameID string       `json:"gameID,omitempty"`
	Move   *MovePayload `json:"move,omitempty"`
}

// MovePayload carries one attempted Nim move.
type MovePayload struct {
	PlayerID   string `json:"playerID"`
	NumObjects int    `json:"numObjects"`
}

// OutgoingMessage is what the server pushes to clients.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ChatUpdatePayload carries the full hydrated chat; clients replace their
// local copy wholesale.
type ChatUpdatePayload struct {
	Chat *model.Chat `json:"chat"`
	Type string      `json:"type"`
}

// GameUpdatePayload carries the full authoritative game snapshot.
type GameUpdatePayload struct {
	GameState *model.GameInstance `json:"gameState"`
}

// GameErrorPayload is addressed to a single player; clients ignore errors
// addressed to someone else.
type GameErrorPayload struct {
	Player string `json:"player"`
	Error  string `json:"error"`
}

// ErrorPayload reports a malformed or unknown client event.
type ErrorPayload struct {
	Message string `json:"message"`
}
