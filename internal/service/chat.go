package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
	"github.com/forumchat/internal/repository"
	"github.com/forumchat/internal/storage"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// NewMessage is the input for a message to be persisted.
type NewMessage struct {
	Content string
	Sender  string
	SentAt  time.Time
}

// ChatListItem is one entry of ListChatsFor. A hydration failure for one
// chat must not drop the whole batch, so failures are carried per item.
type ChatListItem struct {
	Chat *model.Chat
	Err  error
}

// MessagePusher notifies offline participants out-of-band (Web Push).
type MessagePusher interface {
	NotifyNewMessage(chat *model.Chat, sender string)
}

type ChatService struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	cache    storage.ChatCache
	notifier ChatNotifier
	pusher   MessagePusher
	locks    *keyedMutex
}

func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	cache storage.ChatCache,
) *ChatService {
	return &ChatService{
		chats:    chats,
		messages: messages,
		users:    users,
		cache:    cache,
		locks:    newKeyedMutex(),
	}
}

// SetNotifier attaches the push channel. Set after the hub exists; the hub
// in turn needs the services, so wiring happens in two steps.
func (s *ChatService) SetNotifier(n ChatNotifier) {
	s.notifier = n
}

// SetPusher attaches the Web Push sender. Optional; nil disables push.
func (s *ChatService) SetPusher(p MessagePusher) {
	s.pusher = p
}

// CreateChat persists the initial messages first and then the chat
// referencing them, so a partial failure can only leave orphan messages,
// never a chat pointing at missing ones. Broadcasts a `created` update to
// every connection.
func (s *ChatService) CreateChat(ctx context.Context, participants []string, initial []NewMessage) (*model.Chat, error) {
	defer logger.DeferLogDuration("chatService.CreateChat", time.Now())()

	trimmed := lo.Map(participants, func(p string, _ int) string { return strings.TrimSpace(p) })
	if len(trimmed) == 0 || lo.Contains(trimmed, "") {
		return nil, fmt.Errorf("%w: participants must be a non-empty list of usernames", ErrInvalidRequest)
	}
	trimmed = lo.Uniq(trimmed)

	now := time.Now().UTC()
	messages := make([]model.Message, 0, len(initial))
	for _, in := range initial {
		m, err := s.persistMessage(ctx, in)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}

	chat := &model.Chat{
		ID:           uuid.New().String(),
		Participants: trimmed,
		Messages:     messages,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	hydrated, err := s.hydrate(ctx, chat)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, hydrated)

	if s.notifier != nil {
		s.notifier.ChatCreated(hydrated)
	}
	return hydrated, nil
}

// AppendMessage persists the message, then links it into the chat. If the
// link fails the persisted message stays behind as accepted garbage and the
// whole operation is reported failed. Returns the fully hydrated chat and
// broadcasts it to the chat's room.
func (s *ChatService) AppendMessage(ctx context.Context, chatID, content, sender string, sentAt time.Time) (*model.Chat, error) {
	defer logger.DeferLogDuration("chatService.AppendMessage", time.Now())()

	in := NewMessage{Content: content, Sender: sender, SentAt: sentAt}
	if strings.TrimSpace(in.Content) == "" || strings.TrimSpace(in.Sender) == "" {
		return nil, fmt.Errorf("%w: message content and sender are required", ErrInvalidRequest)
	}

	// Message order must reflect acceptance order, not arrival order.
	unlock := s.locks.Lock(chatID)
	defer unlock()

	m, err := s.persistMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.chats.AppendMessage(ctx, chatID, m.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, chatID)

	hydrated, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ChatMessage(hydrated)
	}
	if s.pusher != nil {
		s.pusher.NotifyNewMessage(hydrated, m.Sender)
	}
	return hydrated, nil
}

// AddParticipant resolves userID to a username and adds it to the chat's
// participant set (idempotent).
func (s *ChatService) AddParticipant(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chatService.AddParticipant", time.Now())()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(chatID)
	defer unlock()

	if err := s.chats.AddParticipant(ctx, chatID, user.Username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, chatID)
	return s.getChat(ctx, chatID)
}

// GetChat returns the hydrated chat, serving from cache when possible.
func (s *ChatService) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chatService.GetChat", time.Now())()
	return s.getChat(ctx, chatID)
}

// ListChatsFor returns every chat username participates in, each hydrated
// independently.
func (s *ChatService) ListChatsFor(ctx context.Context, username string) ([]ChatListItem, error) {
	defer logger.DeferLogDuration("chatService.ListChatsFor", time.Now())()

	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}
	ids, err := s.chats.FindIDsByParticipant(ctx, username)
	if err != nil {
		return nil, err
	}

	items := make([]ChatListItem, 0, len(ids))
	for _, id := range ids {
		chat, err := s.getChat(ctx, id)
		if err != nil {
			logger.Errorf("list chats: hydrate %s: %v", id, err)
			items = append(items, ChatListItem{Err: err})
			continue
		}
		items = append(items, ChatListItem{Chat: chat})
	}
	return items, nil
}

func (s *ChatService) getChat(ctx context.Context, chatID string) (*model.Chat, error) {
	if chat, ok := s.cache.Get(ctx, chatID); ok {
		return chat, nil
	}
	chat, err := s.chats.GetByID(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	if err != nil {
		return nil, err
	}
	hydrated, err := s.hydrate(ctx, chat)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, hydrated)
	return hydrated, nil
}

func (s *ChatService) persistMessage(ctx context.Context, in NewMessage) (*model.Message, error) {
	content := strings.TrimSpace(in.Content)
	sender := strings.TrimSpace(in.Sender)
	if content == "" || sender == "" {
		return nil, fmt.Errorf("%w: message content and sender are required", ErrInvalidRequest)
	}
	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	m := &model.Message{
		ID:      uuid.New().String(),
		Content: content,
		Sender:  sender,
		SentAt:  sentAt,
		Type:    model.MessageTypeDirect,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// hydrate attaches sender summaries to every message. An unresolvable
// sender yields a nil User on that message, not a failure.
func (s *ChatService) hydrate(ctx context.Context, chat *model.Chat) (*model.Chat, error) {
	out := *chat
	out.Messages = make([]model.Message, len(chat.Messages))
	for i, m := range chat.Messages {
		user, err := s.users.GetByUsername(ctx, m.Sender)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			m.User = nil
		case err != nil:
			return nil, err
		default:
			pub := user.ToPublic()
			m.User = &pub
		}
		out.Messages[i] = m
	}
	return &out, nil
}
