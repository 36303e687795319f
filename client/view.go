// Package client is the Go client for the forumchat realtime API: a thin
// WebSocket connection plus a View that folds server events into local
// state the way the browser UI does.
package client

import (
	"encoding/json"
	"sync"

	"github.com/forumchat/internal/model"
	"github.com/forumchat/internal/ws"
)

// View folds server events into client-side state. Server snapshots are
// authoritative: an update replaces the local copy wholesale, the view
// never merges.
type View struct {
	mu       sync.Mutex
	username string

	chats     map[string]*model.Chat
	chatOrder []string

	mountedGame string
	game        *model.GameInstance
	gameErrors  []string
}

func NewView(username string) *View {
	return &View{
		username: username,
		chats:    make(map[string]*model.Chat),
	}
}

// Apply feeds one raw server frame into the view. Unknown or malformed
// frames are ignored; the server is trusted, the transport is not.
func (v *View) Apply(frame []byte) {
	var env struct {
		Type    ws.EventType    `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return
	}

	switch env.Type {
	case ws.EventChatUpdate:
		var p ws.ChatUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Chat == nil {
			return
		}
		v.applyChatUpdate(&p)
	case ws.EventGameUpdate:
		var p ws.GameUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.GameState == nil {
			return
		}
		v.applyGameUpdate(p.GameState)
	case ws.EventGameError:
		var p ws.GameErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		v.applyGameError(&p)
	}
}

func (v *View) applyChatUpdate(p *ws.ChatUpdatePayload) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch p.Type {
	case ws.ChatUpdateCreated:
		// A chat may arrive both as the createChat response and as the
		// broadcast; the second arrival must not duplicate the entry.
		if _, ok := v.chats[p.Chat.ID]; ok {
			return
		}
		if !p.Chat.HasParticipant(v.username) {
			return
		}
		v.chats[p.Chat.ID] = p.Chat
		v.chatOrder = append(v.chatOrder, p.Chat.ID)
	case ws.ChatUpdateNewMessage:
		if _, ok := v.chats[p.Chat.ID]; !ok {
			// Not tracking this chat; room events after leaving are stale.
			return
		}
		v.chats[p.Chat.ID] = p.Chat
	}
}

func (v *View) applyGameUpdate(g *model.GameInstance) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mountedGame != g.GameID {
		return
	}
	v.game = g
}

func (v *View) applyGameError(p *ws.GameErrorPayload) {
	if p.Player != v.username {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mountedGame == "" {
		return
	}
	v.gameErrors = append(v.gameErrors, p.Error)
}

// TrackChat seeds the view with a chat fetched over HTTP, so subsequent
// newMessage updates have something to replace.
func (v *View) TrackChat(chat *model.Chat) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.chats[chat.ID]; !ok {
		v.chatOrder = append(v.chatOrder, chat.ID)
	}
	v.chats[chat.ID] = chat
}

// ForgetChat stops tracking the chat; later updates for it are dropped.
func (v *View) ForgetChat(chatID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.chats[chatID]; !ok {
		return
	}
	delete(v.chats, chatID)
	for i, id := range v.chatOrder {
		if id == chatID {
			v.chatOrder = append(v.chatOrder[:i], v.chatOrder[i+1:]...)
			break
		}
	}
}

// MountGame declares which game the client is currently viewing. Updates
// for any other game are ignored.
func (v *View) MountGame(gameID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mountedGame = gameID
	v.game = nil
	v.gameErrors = nil
}

// UnmountGame clears the mounted game; late updates after leaving the
// game page no longer touch the view.
func (v *View) UnmountGame() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mountedGame = ""
	v.game = nil
	v.gameErrors = nil
}

// Chats returns the tracked chats in arrival order.
func (v *View) Chats() []*model.Chat {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*model.Chat, 0, len(v.chatOrder))
	for _, id := range v.chatOrder {
		out = append(out, v.chats[id])
	}
	return out
}

// Chat returns one tracked chat, or nil.
func (v *View) Chat(chatID string) *model.Chat {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.chats[chatID]
}

// Game returns the latest snapshot of the mounted game, or nil.
func (v *View) Game() *model.GameInstance {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.game
}

// GameErrors returns the rule violations reported to this player since
// the game was mounted.
func (v *View) GameErrors() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.gameErrors))
	copy(out, v.gameErrors)
	return out
}
