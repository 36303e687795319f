// Package storage defines the cache used for hydrated chat snapshots.
// Implementations: redis.Client (multi-instance deployments), memory.Client
// (single instance / -dev without Redis).
package storage

import (
	"context"

	"github.com/forumchat/internal/model"
)

// ChatCache caches fully hydrated chats keyed by chat id. Entries expire
// after the configured TTL; writers must invalidate on every mutation so a
// stale snapshot can never outlive the next append.
type ChatCache interface {
	Get(ctx context.Context, chatID string) (*model.Chat, bool)
	Set(ctx context.Context, chat *model.Chat)
	Invalidate(ctx context.Context, chatID string)
	Close() error
}
