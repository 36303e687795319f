// Package repository implements persistence over Postgres (pgx). Services
// consume the interfaces below so tests can substitute in-memory fakes.
// All operations are atomic at the single-row level only; cross-entity
// sequencing (message before chat link) is the service layer's concern.
package repository

import (
	"context"
	"errors"

	"github.com/forumchat/internal/model"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
}

type ChatRepository interface {
	// Create persists the chat row, its participant list and links to
	// already-persisted messages, in that order.
	Create(ctx context.Context, c *model.Chat) error
	// GetByID returns the chat with participants in display order and
	// messages in insertion order. Message sender summaries are not
	// attached here; hydration happens in the service layer.
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	AppendMessage(ctx context.Context, chatID, messageID string) error
	// AddParticipant has set semantics: adding an existing participant
	// is a no-op.
	AddParticipant(ctx context.Context, chatID, username string) error
	FindIDsByParticipant(ctx context.Context, username string) ([]string, error)
}

type GameRepository interface {
	Create(ctx context.Context, g *model.GameInstance) error
	GetByID(ctx context.Context, id string) (*model.GameInstance, error)
	Update(ctx context.Context, g *model.GameInstance) error
	ListByStatus(ctx context.Context, status model.GameStatus) ([]model.GameInstance, error)
}

type PushSubscriptionRepository interface {
	Save(ctx context.Context, sub *model.PushSubscription) error
	Delete(ctx context.Context, endpoint string) error
	ListByUser(ctx context.Context, username string) ([]model.PushSubscription, error)
}
