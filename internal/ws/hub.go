package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
)

// GameActions is the slice of the game service the hub needs for moves
// arriving over the socket. Rule violations are routed back to the acting
// player by the service through the notifier, so the hub only logs them.
type GameActions interface {
	ApplyMove(ctx context.Context, gameID, username string, numObjects int) (*model.GameInstance, error)
}

// Hub tracks every live connection and the room membership used for
// fan-out. Rooms are broadcast scopes keyed by chat or game id; a
// connection may sit in any number of rooms and is removed from all of
// them on teardown.
//
// All outbound publishes pass through the single Run loop, which preserves
// per-room causal order: updates to one room reach that room's subscribers
// in the order they were produced.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{} // username → connections
	rooms    map[string]map[*Client]struct{} // room id → subscribers
	total    int
	maxConns int

	games GameActions
	bus   *Bus

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
}

// broadcastMsg is one pre-marshaled publish. Exactly one of user/room is
// set for targeted delivery; both empty means every connection.
type broadcastMsg struct {
	room string
	user string
	data []byte
}

func NewHub(games GameActions, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		games:      games,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan broadcastMsg, 256),
		done:       make(chan struct{}),
	}
}

// SetBus attaches the cross-instance broadcast bus and starts consuming
// remote publishes. Call before Run.
func (h *Hub) SetBus(ctx context.Context, bus *Bus) {
	h.bus = bus
	go bus.Subscribe(ctx, func(m BusMessage) {
		h.enqueue(broadcastMsg{room: m.Room, user: m.User, data: m.Data})
	})
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.username)
		c.Close()
		return
	}
	if _, ok := h.clients[c.username]; !ok {
		h.clients[c.username] = make(map[*Client]struct{})
	}
	h.clients[c.username][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

// removeClient drops the connection and scrubs it from every room it ever
// joined, so a dead connection can never linger as a fan-out target.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.username]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.username)
	}
	for roomID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// IsOnline reports whether the user has at least one live connection on
// this instance.
func (h *Hub) IsOnline(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[username]) > 0
}

// JoinRoom subscribes the connection to a room. Idempotent.
func (h *Hub) JoinRoom(c *Client, roomID string) {
	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	h.mu.Unlock()
}

// LeaveRoom unsubscribes the connection. Leaving a room the connection is
// not in is a no-op.
func (h *Hub) LeaveRoom(c *Client, roomID string) {
	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
}

// HandleMessage dispatches incoming WebSocket events.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventJoinChat:
		if msg.ChatID != "" {
			h.JoinRoom(c, msg.ChatID)
			logger.Infof("ws user=%s joined chat room %s", c.username, msg.ChatID)
		}
	case EventLeaveChat:
		if msg.ChatID != "" {
			h.LeaveRoom(c, msg.ChatID)
			logger.Infof("ws user=%s left chat room %s", c.username, msg.ChatID)
		}
	case EventJoinGame:
		if msg.GameID != "" {
			h.JoinRoom(c, msg.GameID)
		}
	case EventLeaveGame:
		if msg.GameID != "" {
			h.LeaveRoom(c, msg.GameID)
		}
	case EventMakeMove:
		h.handleMakeMove(ctx, c, msg)
	default:
		h.sendToClient(c, marshalEvent(OutgoingMessage{
			Type:    EventError,
			Payload: ErrorPayload{Message: "unknown event type"},
		}))
	}
}

func (h *Hub) handleMakeMove(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleMakeMove", time.Now())()
	if msg.GameID == "" || msg.Move == nil {
		h.sendToClient(c, marshalEvent(OutgoingMessage{
			Type:    EventError,
			Payload: ErrorPayload{Message: "gameID and move required"},
		}))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// The move is attributed to the connection's user, not the payload:
	// a client cannot move on an opponent's behalf.
	if _, err := h.games.ApplyMove(ctx, msg.GameID, c.username, msg.Move.NumObjects); err != nil {
		// Already routed to this player via the notifier.
		logger.Infof("ws move rejected game=%s user=%s: %v", msg.GameID, c.username, err)
	}
}

// BroadcastAll publishes to every connection on every instance.
func (h *Hub) BroadcastAll(msg OutgoingMessage) {
	h.publish(broadcastMsg{data: marshalEvent(msg)})
}

// BroadcastToRoom publishes to the room's current subscribers.
func (h *Hub) BroadcastToRoom(roomID string, msg OutgoingMessage) {
	h.publish(broadcastMsg{room: roomID, data: marshalEvent(msg)})
}

// BroadcastToUser publishes to all of one user's connections only.
func (h *Hub) BroadcastToUser(username string, msg OutgoingMessage) {
	h.publish(broadcastMsg{user: username, data: marshalEvent(msg)})
}

func (h *Hub) publish(msg broadcastMsg) {
	if msg.data == nil {
		return
	}
	h.enqueue(msg)
	if h.bus != nil {
		// Mirror to other instances; delivery there goes through their
		// own Run loop.
		go h.bus.Publish(context.Background(), BusMessage{Room: msg.room, User: msg.user, Data: msg.data})
	}
}

func (h *Hub) enqueue(msg broadcastMsg) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) deliver(msg broadcastMsg) {
	targets := h.targetsFor(msg)
	for _, c := range targets {
		h.sendToClient(c, msg.data)
	}
}

func (h *Hub) targetsFor(msg broadcastMsg) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch {
	case msg.user != "":
		clients, ok := h.clients[msg.user]
		if !ok {
			return nil
		}
		targets := make([]*Client, 0, len(clients))
		for c := range clients {
			targets = append(targets, c)
		}
		return targets
	case msg.room != "":
		members, ok := h.rooms[msg.room]
		if !ok {
			return nil
		}
		targets := make([]*Client, 0, len(members))
		for c := range members {
			targets = append(targets, c)
		}
		return targets
	default:
		targets := make([]*Client, 0, h.total)
		for _, clients := range h.clients {
			for c := range clients {
				targets = append(targets, c)
			}
		}
		return targets
	}
}

func (h *Hub) sendToClient(c *Client, data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.username)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func marshalEvent(msg OutgoingMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("ws marshal %s event: %v", msg.Type, err)
		return nil
	}
	return data
}
