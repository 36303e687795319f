// Package memory is the in-process ChatCache used when Redis is not
// configured. Suitable for a single instance only.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/forumchat/internal/model"
)

type entry struct {
	chat     *model.Chat
	deadline time.Time
}

type Client struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

func NewClient(ttl time.Duration) *Client {
	c := &Client{
		entries: make(map[string]entry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *Client) Get(_ context.Context, chatID string) (*model.Chat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[chatID]
	if !ok || time.Now().After(e.deadline) {
		return nil, false
	}
	return e.chat, true
}

func (c *Client) Set(_ context.Context, chat *model.Chat) {
	c.mu.Lock()
	c.entries[chat.ID] = entry{chat: chat, deadline: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Client) Invalidate(_ context.Context, chatID string) {
	c.mu.Lock()
	delete(c.entries, chatID)
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// janitor sweeps expired entries so an idle process does not hold chats
// forever. Get already ignores expired entries; this only bounds memory.
func (c *Client) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for id, e := range c.entries {
				if now.After(e.deadline) {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
