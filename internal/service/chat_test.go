package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newChatService(users *fakeUserRepo) (*ChatService, *fakeChatRepo, *fakeMessageRepo, *recordingChatNotifier) {
	msgs := newFakeMessageRepo()
	chats := newFakeChatRepo(msgs)
	notifier := &recordingChatNotifier{}
	svc := NewChatService(chats, msgs, users, nopCache{})
	svc.SetNotifier(notifier)
	return svc, chats, msgs, notifier
}

func TestCreateChatWithInitialMessage(t *testing.T) {
	req := require.New(t)
	users := &fakeUserRepo{}
	users.add("u1", "alice")
	users.add("u2", "bob")
	svc, _, _, notifier := newChatService(users)

	chat, err := svc.CreateChat(context.Background(),
		[]string{"alice", "bob"},
		[]NewMessage{{Content: "Hello!", Sender: "alice"}},
	)
	req.NoError(err)
	req.NotEmpty(chat.ID)
	req.Equal([]string{"alice", "bob"}, chat.Participants)
	req.Len(chat.Messages, 1)
	req.Equal("Hello!", chat.Messages[0].Content)
	req.Equal("alice", chat.Messages[0].Sender)
	req.NotNil(chat.Messages[0].User)
	req.Equal("alice", chat.Messages[0].User.Username)

	req.Len(notifier.created, 1)
	req.Equal(chat.ID, notifier.created[0].ID)
}

func TestCreateChatValidation(t *testing.T) {
	req := require.New(t)
	svc, _, _, _ := newChatService(&fakeUserRepo{})

	_, err := svc.CreateChat(context.Background(), nil, nil)
	req.ErrorIs(err, ErrInvalidRequest)

	_, err = svc.CreateChat(context.Background(), []string{"alice", "  "}, nil)
	req.ErrorIs(err, ErrInvalidRequest)
}

func TestCreateChatDeduplicatesParticipants(t *testing.T) {
	req := require.New(t)
	svc, _, _, _ := newChatService(&fakeUserRepo{})

	chat, err := svc.CreateChat(context.Background(), []string{"alice", "alice", "bob"}, nil)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, chat.Participants)
}

func TestAppendMessageBroadcastsHydratedChat(t *testing.T) {
	req := require.New(t)
	users := &fakeUserRepo{}
	users.add("u1", "alice")
	users.add("u2", "bob")
	svc, _, _, notifier := newChatService(users)

	chat, err := svc.CreateChat(context.Background(), []string{"alice", "bob"}, nil)
	req.NoError(err)

	updated, err := svc.AppendMessage(context.Background(), chat.ID, "hi there", "bob", time.Now())
	req.NoError(err)
	req.Len(updated.Messages, 1)
	req.Equal("hi there", updated.Messages[0].Content)
	req.NotNil(updated.Messages[0].User)
	req.Equal("bob", updated.Messages[0].User.Username)

	req.Len(notifier.messages, 1)
	req.Equal(chat.ID, notifier.messages[0].ID)
}

func TestAppendMessageUnknownChat(t *testing.T) {
	req := require.New(t)
	svc, _, _, notifier := newChatService(&fakeUserRepo{})

	_, err := svc.AppendMessage(context.Background(), "nope", "hi", "alice", time.Time{})
	req.ErrorIs(err, ErrChatNotFound)
	req.Empty(notifier.messages)
}

func TestAppendMessageValidation(t *testing.T) {
	req := require.New(t)
	svc, _, _, _ := newChatService(&fakeUserRepo{})

	_, err := svc.AppendMessage(context.Background(), "chat1", "  ", "alice", time.Time{})
	req.ErrorIs(err, ErrInvalidRequest)

	_, err = svc.AppendMessage(context.Background(), "chat1", "hi", "", time.Time{})
	req.ErrorIs(err, ErrInvalidRequest)
}

// A failed chat link after the message row was written surfaces the error;
// the orphan message row is accepted garbage.
func TestAppendMessagePartialFailure(t *testing.T) {
	req := require.New(t)
	users := &fakeUserRepo{}
	users.add("u1", "alice")
	svc, chats, msgs, notifier := newChatService(users)

	chat, err := svc.CreateChat(context.Background(), []string{"alice"}, nil)
	req.NoError(err)

	chats.appendErr = errors.New("link failed")
	_, err = svc.AppendMessage(context.Background(), chat.ID, "lost", "alice", time.Time{})
	req.Error(err)
	req.Empty(notifier.messages)
	// The message row exists even though the operation failed.
	req.Len(msgs.msgs, 1)

	stored, err := svc.GetChat(context.Background(), chat.ID)
	req.NoError(err)
	req.Empty(stored.Messages)
}

func TestAddParticipantIdempotent(t *testing.T) {
	req := require.New(t)
	users := &fakeUserRepo{}
	users.add("u1", "alice")
	users.add("u2", "bob")
	svc, _, _, _ := newChatService(users)

	chat, err := svc.CreateChat(context.Background(), []string{"alice"}, nil)
	req.NoError(err)

	first, err := svc.AddParticipant(context.Background(), chat.ID, "u2")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, first.Participants)

	second, err := svc.AddParticipant(context.Background(), chat.ID, "u2")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, second.Participants)
}

func TestAddParticipantUnknownUser(t *testing.T) {
	req := require.New(t)
	users := &fakeUserRepo{}
	users.add("u1", "alice")
	svc, _, _, _ := newChatService(users)

	chat, err := svc.CreateChat(context.Background(), []string{"alice"}, nil)
	req.NoError(err)

	_, err = svc.AddParticipant(context.Background(), chat.ID, "ghost")
	req.ErrorIs(err, ErrUserNotFound)
}

func TestHydrateLeavesUnknownSenderNil(t *testing.T) {
	req := require.New(t)
	users := &fakeUserRepo{}
	users.add("u1", "alice")
	svc, _, _, _ := newChatService(users)

	chat, err := svc.CreateChat(context.Background(),
		[]string{"alice", "stranger"},
		[]NewMessage{{Content: "who am I", Sender: "stranger"}},
	)
	req.NoError(err)
	req.Len(chat.Messages, 1)
	req.Nil(chat.Messages[0].User)
}

func TestListChatsFor(t *testing.T) {
	req := require.New(t)
	users := &fakeUserRepo{}
	users.add("u1", "alice")
	users.add("u2", "bob")
	svc, _, _, _ := newChatService(users)

	c1, err := svc.CreateChat(context.Background(), []string{"alice", "bob"}, nil)
	req.NoError(err)
	_, err = svc.CreateChat(context.Background(), []string{"bob"}, nil)
	req.NoError(err)

	items, err := svc.ListChatsFor(context.Background(), "alice")
	req.NoError(err)
	req.Len(items, 1)
	req.NoError(items[0].Err)
	req.Equal(c1.ID, items[0].Chat.ID)

	items, err = svc.ListChatsFor(context.Background(), "bob")
	req.NoError(err)
	req.Len(items, 2)
}
