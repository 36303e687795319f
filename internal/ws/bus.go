package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/forumchat/internal/logger"
)

const busChannel = "forumchat:events"

// BusMessage is one broadcast mirrored across instances through redis
// pub/sub. Origin identifies the publishing process so an instance never
// re-delivers its own publishes.
type BusMessage struct {
	Origin string `json:"origin"`
	Room   string `json:"room,omitempty"`
	User   string `json:"user,omitempty"`
	Data   []byte `json:"data"`
}

// Bus fans hub broadcasts out to every running instance. With a single
// instance and no redis configured the hub simply runs without one.
type Bus struct {
	rdb    *redis.Client
	origin string
}

func NewBus(ctx context.Context, redisURL string) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, origin: uuid.NewString()}, nil
}

func (b *Bus) Publish(ctx context.Context, msg BusMessage) {
	msg.Origin = b.origin
	raw, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("bus marshal: %v", err)
		return
	}
	if err := b.rdb.Publish(ctx, busChannel, raw).Err(); err != nil {
		logger.Errorf("bus publish: %v", err)
	}
}

// Subscribe consumes remote publishes until ctx is cancelled, invoking
// handle for each message from another instance.
func (b *Bus) Subscribe(ctx context.Context, handle func(BusMessage)) {
	sub := b.rdb.Subscribe(ctx, busChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg BusMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logger.Errorf("bus decode: %v", err)
				continue
			}
			if msg.Origin == b.origin {
				continue
			}
			handle(msg)
		}
	}
}

func (b *Bus) Close() error {
	return b.rdb.Close()
}
