package ws

import "github.com/forumchat/internal/model"

// HubNotifier feeds service-layer events into the hub. It implements
// service.ChatNotifier and service.GameNotifier.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// ChatCreated announces a brand-new chat to every connection, so clients
// can surface it even before anyone joins its room.
func (n *HubNotifier) ChatCreated(chat *model.Chat) {
	n.hub.BroadcastAll(OutgoingMessage{
		Type:    EventChatUpdate,
		Payload: ChatUpdatePayload{Chat: chat, Type: ChatUpdateCreated},
	})
}

// ChatMessage delivers the updated chat to the chat's room subscribers.
func (n *HubNotifier) ChatMessage(chat *model.Chat) {
	n.hub.BroadcastToRoom(chat.ID, OutgoingMessage{
		Type:    EventChatUpdate,
		Payload: ChatUpdatePayload{Chat: chat, Type: ChatUpdateNewMessage},
	})
}

// GameUpdate publishes the full game snapshot to the game's room.
func (n *HubNotifier) GameUpdate(game *model.GameInstance) {
	n.hub.BroadcastToRoom(game.GameID, OutgoingMessage{
		Type:    EventGameUpdate,
		Payload: GameUpdatePayload{GameState: game},
	})
}

// GameError goes only to the player whose action was rejected, never to
// the opponent.
func (n *HubNotifier) GameError(gameID, username, message string) {
	n.hub.BroadcastToUser(username, OutgoingMessage{
		Type:    EventGameError,
		Payload: GameErrorPayload{Player: username, Error: message},
	})
}
