package service

import "github.com/forumchat/internal/model"

// ChatNotifier publishes chat updates to connected clients. Implemented by
// the ws hub; nil-checked so services stay usable without a push channel.
type ChatNotifier interface {
	// ChatCreated goes to every connection: the recipients of a brand-new
	// chat have not joined its room yet.
	ChatCreated(chat *model.Chat)
	// ChatMessage goes only to connections subscribed to the chat's room.
	ChatMessage(chat *model.Chat)
}

// GameNotifier publishes game updates and player-targeted errors.
type GameNotifier interface {
	// GameUpdate broadcasts the full authoritative snapshot to the game's
	// room. Always a full state, never a diff.
	GameUpdate(g *model.GameInstance)
	// GameError is delivered only to the offending player's connections.
	// One player's rejected move must never surface to the opponent.
	GameError(gameID, username, message string)
}
