package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forumchat/internal/model"
)

type fakeGameActions struct {
	gameID   string
	username string
	count    int
	err      error
}

func (f *fakeGameActions) ApplyMove(_ context.Context, gameID, username string, numObjects int) (*model.GameInstance, error) {
	f.gameID = gameID
	f.username = username
	f.count = numObjects
	return nil, f.err
}

func startHub(t *testing.T, games GameActions) *Hub {
	t.Helper()
	hub := NewHub(games, 100)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		select {
		case <-hub.done:
		case <-time.After(time.Second):
			t.Fatal("hub did not shut down")
		}
	})
	return hub
}

func registerClient(t *testing.T, hub *Hub, username string) *Client {
	t.Helper()
	c := NewClient(hub, nil, username)
	hub.Register(c)
	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients[username][c]
		return ok
	})
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func recvEvent(t *testing.T, c *Client) OutgoingMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg struct {
			Type    EventType       `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		return OutgoingMessage{Type: msg.Type, Payload: msg.Payload}
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return OutgoingMessage{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event delivered: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToRoomIsolation(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, &fakeGameActions{})

	alice := registerClient(t, hub, "alice")
	bob := registerClient(t, hub, "bob")
	carol := registerClient(t, hub, "carol")

	hub.JoinRoom(alice, "chat1")
	hub.JoinRoom(bob, "chat1")
	hub.JoinRoom(carol, "chat2")

	hub.BroadcastToRoom("chat1", OutgoingMessage{
		Type:    EventChatUpdate,
		Payload: ChatUpdatePayload{Chat: &model.Chat{ID: "chat1"}, Type: ChatUpdateNewMessage},
	})

	req.Equal(EventChatUpdate, recvEvent(t, alice).Type)
	req.Equal(EventChatUpdate, recvEvent(t, bob).Type)
	assertNoEvent(t, carol)
}

func TestBroadcastToRoomPreservesOrder(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, &fakeGameActions{})

	alice := registerClient(t, hub, "alice")
	hub.JoinRoom(alice, "game1")

	for i := 1; i <= 5; i++ {
		hub.BroadcastToRoom("game1", OutgoingMessage{
			Type:    EventGameUpdate,
			Payload: GameUpdatePayload{GameState: &model.GameInstance{GameID: "game1", State: model.GameState{RemainingObjects: 21 - i}}},
		})
	}

	for i := 1; i <= 5; i++ {
		msg := recvEvent(t, alice)
		var payload GameUpdatePayload
		req.NoError(json.Unmarshal(msg.Payload.(json.RawMessage), &payload))
		req.Equal(21-i, payload.GameState.State.RemainingObjects)
	}
}

func TestBroadcastToUserHitsAllConnections(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, &fakeGameActions{})

	tab1 := registerClient(t, hub, "alice")
	tab2 := registerClient(t, hub, "alice")
	bob := registerClient(t, hub, "bob")

	hub.BroadcastToUser("alice", OutgoingMessage{
		Type:    EventGameError,
		Payload: GameErrorPayload{Player: "alice", Error: "NOT YOUR TURN"},
	})

	req.Equal(EventGameError, recvEvent(t, tab1).Type)
	req.Equal(EventGameError, recvEvent(t, tab2).Type)
	assertNoEvent(t, bob)
}

func TestBroadcastAllReachesEveryone(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, &fakeGameActions{})

	alice := registerClient(t, hub, "alice")
	bob := registerClient(t, hub, "bob")

	hub.BroadcastAll(OutgoingMessage{
		Type:    EventChatUpdate,
		Payload: ChatUpdatePayload{Chat: &model.Chat{ID: "chat9"}, Type: ChatUpdateCreated},
	})

	req.Equal(EventChatUpdate, recvEvent(t, alice).Type)
	req.Equal(EventChatUpdate, recvEvent(t, bob).Type)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	hub := startHub(t, &fakeGameActions{})

	alice := registerClient(t, hub, "alice")
	hub.JoinRoom(alice, "chat1")
	hub.LeaveRoom(alice, "chat1")

	hub.BroadcastToRoom("chat1", OutgoingMessage{
		Type:    EventChatUpdate,
		Payload: ChatUpdatePayload{Chat: &model.Chat{ID: "chat1"}, Type: ChatUpdateNewMessage},
	})
	assertNoEvent(t, alice)
}

func TestUnregisterScrubsRooms(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, &fakeGameActions{})

	alice := registerClient(t, hub, "alice")
	hub.JoinRoom(alice, "chat1")
	hub.Unregister(alice)

	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, stillThere := hub.clients["alice"]
		_, roomAlive := hub.rooms["chat1"]
		return !stillThere && !roomAlive
	})

	select {
	case <-alice.done:
	default:
		t.Fatal("client not closed on unregister")
	}

	hub.mu.RLock()
	total := hub.total
	hub.mu.RUnlock()
	req.Equal(0, total)
}

func TestHandleMessageJoinLeave(t *testing.T) {
	hub := startHub(t, &fakeGameActions{})
	ctx := context.Background()

	alice := registerClient(t, hub, "alice")
	hub.HandleMessage(ctx, alice, IncomingMessage{Type: EventJoinChat, ChatID: "chat1"})

	hub.BroadcastToRoom("chat1", OutgoingMessage{
		Type:    EventChatUpdate,
		Payload: ChatUpdatePayload{Chat: &model.Chat{ID: "chat1"}, Type: ChatUpdateNewMessage},
	})
	recvEvent(t, alice)

	hub.HandleMessage(ctx, alice, IncomingMessage{Type: EventLeaveChat, ChatID: "chat1"})
	hub.BroadcastToRoom("chat1", OutgoingMessage{
		Type:    EventChatUpdate,
		Payload: ChatUpdatePayload{Chat: &model.Chat{ID: "chat1"}, Type: ChatUpdateNewMessage},
	})
	assertNoEvent(t, alice)
}

func TestHandleMakeMoveUsesConnectionIdentity(t *testing.T) {
	req := require.New(t)
	games := &fakeGameActions{}
	hub := startHub(t, games)

	alice := registerClient(t, hub, "alice")
	hub.HandleMessage(context.Background(), alice, IncomingMessage{
		Type:   EventMakeMove,
		GameID: "game1",
		// The payload claims to be bob; the connection identity wins.
		Move: &MovePayload{PlayerID: "bob", NumObjects: 2},
	})

	req.Equal("game1", games.gameID)
	req.Equal("alice", games.username)
	req.Equal(2, games.count)
}

func TestHandleMakeMoveMissingFields(t *testing.T) {
	req := require.New(t)
	games := &fakeGameActions{}
	hub := startHub(t, games)

	alice := registerClient(t, hub, "alice")
	hub.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventMakeMove})

	msg := recvEvent(t, alice)
	req.Equal(EventError, msg.Type)
	req.Empty(games.gameID)
}

func TestUnknownEventType(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, &fakeGameActions{})

	alice := registerClient(t, hub, "alice")
	hub.HandleMessage(context.Background(), alice, IncomingMessage{Type: "dance"})

	msg := recvEvent(t, alice)
	req.Equal(EventError, msg.Type)
}
