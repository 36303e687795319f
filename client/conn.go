package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/forumchat/internal/ws"
)

// Conn is one realtime connection to the server. Dial, subscribe to the
// rooms of interest, then Listen with a View.
type Conn struct {
	conn     *websocket.Conn
	username string
}

// Dial connects to the server's /ws endpoint. baseURL is the ws:// or
// wss:// address of the server root.
func Dial(ctx context.Context, baseURL, username string) (*Conn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"username": {username}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", u.String(), err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &Conn{conn: conn, username: username}, nil
}

func (c *Conn) Username() string { return c.username }

func (c *Conn) JoinChat(chatID string) error {
	return c.conn.WriteJSON(ws.IncomingMessage{Type: ws.EventJoinChat, ChatID: chatID})
}

func (c *Conn) LeaveChat(chatID string) error {
	return c.conn.WriteJSON(ws.IncomingMessage{Type: ws.EventLeaveChat, ChatID: chatID})
}

func (c *Conn) JoinGame(gameID string) error {
	return c.conn.WriteJSON(ws.IncomingMessage{Type: ws.EventJoinGame, GameID: gameID})
}

func (c *Conn) LeaveGame(gameID string) error {
	return c.conn.WriteJSON(ws.IncomingMessage{Type: ws.EventLeaveGame, GameID: gameID})
}

// MakeMove submits a Nim move on the connection's own behalf.
func (c *Conn) MakeMove(gameID string, numObjects int) error {
	return c.conn.WriteJSON(ws.IncomingMessage{
		Type:   ws.EventMakeMove,
		GameID: gameID,
		Move:   &ws.MovePayload{PlayerID: c.username, NumObjects: numObjects},
	})
}

// Listen reads frames and folds them into the view until the connection
// drops or ctx is cancelled.
func (c *Conn) Listen(ctx context.Context, view *View) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("client: read: %w", err)
		}
		view.Apply(frame)
	}
}

func (c *Conn) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
