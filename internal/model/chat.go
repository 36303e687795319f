package model

import "time"

type MessageType string

const (
	// MessageTypeDirect marks messages exchanged inside a private chat.
	MessageTypeDirect MessageType = "direct"
	// MessageTypeGlobal marks messages posted to the public feed.
	MessageTypeGlobal MessageType = "global"
)

// Message is immutable once created; it is owned by the chat that lists it.
// User carries the hydrated sender summary and is nil when the sender cannot
// be resolved.
type Message struct {
	ID      string      `json:"_id"`
	Content string      `json:"msg"`
	Sender  string      `json:"msgFrom"`
	SentAt  time.Time   `json:"msgDateTime"`
	Type    MessageType `json:"type"`
	User    *UserPublic `json:"user,omitempty"`
}

// Chat aggregates participants with an append-only, insertion-ordered
// message list. Participants keep creation order for display; membership
// checks treat them as a set.
type Chat struct {
	ID           string    `json:"_id"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasParticipant reports set membership regardless of display order.
func (c *Chat) HasParticipant(username string) bool {
	for _, p := range c.Participants {
		if p == username {
			return true
		}
	}
	return false
}
