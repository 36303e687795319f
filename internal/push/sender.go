package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
	"github.com/forumchat/internal/repository"
)

// Presence answers whether a user currently holds a live WebSocket
// connection. Users online get the update over the socket; push is only
// for the ones who are not.
type Presence interface {
	IsOnline(username string) bool
}

// Sender delivers Web Push notifications to subscribed browsers.
type Sender struct {
	subs       repository.PushSubscriptionRepository
	presence   Presence
	keys       *VAPIDKeys
	subscriber string
}

func NewSender(subs repository.PushSubscriptionRepository, presence Presence, keys *VAPIDKeys, subscriber string) *Sender {
	return &Sender{subs: subs, presence: presence, keys: keys, subscriber: subscriber}
}

// PublicKey exposes the VAPID public key for browser subscription.
func (s *Sender) PublicKey() string {
	return s.keys.PublicKey
}

// Subscribe stores a browser subscription for the user. Re-subscribing
// the same endpoint updates the keys.
func (s *Sender) Subscribe(ctx context.Context, sub *model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return s.subs.Save(ctx, sub)
}

// Unsubscribe forgets the endpoint. Unknown endpoints are a no-op.
func (s *Sender) Unsubscribe(ctx context.Context, endpoint string) error {
	return s.subs.Delete(ctx, endpoint)
}

type notification struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	ChatID string `json:"chatId,omitempty"`
}

// NotifyNewMessage pushes to every chat participant who is offline,
// except the sender. Delivery is fire-and-forget; failures are logged,
// expired subscriptions are dropped.
func (s *Sender) NotifyNewMessage(chat *model.Chat, sender string) {
	if len(chat.Messages) == 0 {
		return
	}
	last := chat.Messages[len(chat.Messages)-1]
	payload, err := json.Marshal(notification{
		Title:  "New message from " + sender,
		Body:   last.Content,
		ChatID: chat.ID,
	})
	if err != nil {
		logger.Errorf("push marshal: %v", err)
		return
	}

	for _, participant := range chat.Participants {
		if participant == sender || s.presence.IsOnline(participant) {
			continue
		}
		go s.sendToUser(participant, payload)
	}
}

func (s *Sender) sendToUser(username string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	subs, err := s.subs.ListByUser(ctx, username)
	if err != nil {
		logger.Errorf("push list subscriptions user=%s: %v", username, err)
		return
	}
	for _, sub := range subs {
		target := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &webpush.Options{
			Subscriber:      s.subscriber,
			VAPIDPublicKey:  s.keys.PublicKey,
			VAPIDPrivateKey: s.keys.PrivateKey,
			TTL:             3600,
		})
		if err != nil {
			logger.Errorf("push send user=%s: %v", username, err)
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			// Subscription expired in the push service, forget it.
			if err := s.subs.Delete(ctx, sub.Endpoint); err != nil {
				logger.Errorf("push drop stale subscription: %v", err)
			}
		}
		resp.Body.Close()
	}
}
