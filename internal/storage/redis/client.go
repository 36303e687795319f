// Package redis is the ChatCache backed by Redis, shared across instances.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient connects to Redis and verifies connectivity.
func NewClient(ctx context.Context, url string, ttl time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

func (c *Client) Get(ctx context.Context, chatID string) (*model.Chat, bool) {
	raw, err := c.rdb.Get(ctx, key(chatID)).Bytes()
	if err != nil {
		return nil, false
	}
	var chat model.Chat
	if err := json.Unmarshal(raw, &chat); err != nil {
		logger.Errorf("chat cache unmarshal %s: %v", chatID, err)
		return nil, false
	}
	return &chat, true
}

func (c *Client) Set(ctx context.Context, chat *model.Chat) {
	raw, err := json.Marshal(chat)
	if err != nil {
		logger.Errorf("chat cache marshal %s: %v", chat.ID, err)
		return
	}
	if err := c.rdb.Set(ctx, key(chat.ID), raw, c.ttl).Err(); err != nil {
		logger.Errorf("chat cache set %s: %v", chat.ID, err)
	}
}

func (c *Client) Invalidate(ctx context.Context, chatID string) {
	if err := c.rdb.Del(ctx, key(chatID)).Err(); err != nil {
		logger.Errorf("chat cache del %s: %v", chatID, err)
	}
}

func (c *Client) Close() error { return c.rdb.Close() }

func key(chatID string) string { return "chat:" + chatID }
