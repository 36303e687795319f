package service

import (
	"context"
	"errors"
	"sync"

	"github.com/forumchat/internal/model"
	"github.com/forumchat/internal/repository"
)

type fakeUserRepo struct {
	users []*model.User
}

func (f *fakeUserRepo) add(id, username string) {
	f.users = append(f.users, &model.User{ID: id, Username: username})
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.users = append(f.users, u)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeMessageRepo struct {
	msgs      map[string]*model.Message
	createErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{msgs: make(map[string]*model.Message)}
}

func (f *fakeMessageRepo) Create(_ context.Context, m *model.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *m
	f.msgs[m.ID] = &cp
	return nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id string) (*model.Message, error) {
	m, ok := f.msgs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

type fakeChatRepo struct {
	chats     map[string]*model.Chat
	messages  *fakeMessageRepo
	appendErr error
}

func newFakeChatRepo(messages *fakeMessageRepo) *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*model.Chat), messages: messages}
}

func copyChat(c *model.Chat) *model.Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.Messages = append([]model.Message(nil), c.Messages...)
	return &cp
}

func (f *fakeChatRepo) Create(_ context.Context, c *model.Chat) error {
	f.chats[c.ID] = copyChat(c)
	return nil
}

func (f *fakeChatRepo) GetByID(_ context.Context, id string) (*model.Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyChat(c), nil
}

func (f *fakeChatRepo) AppendMessage(_ context.Context, chatID, messageID string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	c, ok := f.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	m, ok := f.messages.msgs[messageID]
	if !ok {
		return errors.New("message not persisted")
	}
	c.Messages = append(c.Messages, *m)
	return nil
}

func (f *fakeChatRepo) AddParticipant(_ context.Context, chatID, username string) error {
	c, ok := f.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, p := range c.Participants {
		if p == username {
			return nil
		}
	}
	c.Participants = append(c.Participants, username)
	return nil
}

func (f *fakeChatRepo) FindIDsByParticipant(_ context.Context, username string) ([]string, error) {
	var ids []string
	for id, c := range f.chats {
		if c.HasParticipant(username) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeGameRepo struct {
	games     map[string]*model.GameInstance
	updateErr error
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: make(map[string]*model.GameInstance)}
}

func copyGame(g *model.GameInstance) *model.GameInstance {
	cp := *g
	cp.Players = append([]string(nil), g.Players...)
	cp.State.Moves = append([]model.GameMove(nil), g.State.Moves...)
	cp.State.Winners = append([]string(nil), g.State.Winners...)
	return &cp
}

func (f *fakeGameRepo) Create(_ context.Context, g *model.GameInstance) error {
	f.games[g.GameID] = copyGame(g)
	return nil
}

func (f *fakeGameRepo) GetByID(_ context.Context, id string) (*model.GameInstance, error) {
	g, ok := f.games[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyGame(g), nil
}

func (f *fakeGameRepo) Update(_ context.Context, g *model.GameInstance) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.games[g.GameID]; !ok {
		return repository.ErrNotFound
	}
	f.games[g.GameID] = copyGame(g)
	return nil
}

func (f *fakeGameRepo) ListByStatus(_ context.Context, status model.GameStatus) ([]model.GameInstance, error) {
	var out []model.GameInstance
	for _, g := range f.games {
		if status == "" || g.State.Status == status {
			out = append(out, *copyGame(g))
		}
	}
	return out, nil
}

// nopCache satisfies storage.ChatCache without caching anything, so tests
// always observe repository state.
type nopCache struct{}

func (nopCache) Get(context.Context, string) (*model.Chat, bool) { return nil, false }
func (nopCache) Set(context.Context, *model.Chat)                {}
func (nopCache) Invalidate(context.Context, string)              {}
func (nopCache) Close() error                                    { return nil }

type recordingChatNotifier struct {
	mu       sync.Mutex
	created  []*model.Chat
	messages []*model.Chat
}

func (r *recordingChatNotifier) ChatCreated(c *model.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, c)
}

func (r *recordingChatNotifier) ChatMessage(c *model.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, c)
}

type gameErrorRecord struct {
	gameID   string
	username string
	message  string
}

type recordingGameNotifier struct {
	mu      sync.Mutex
	updates []*model.GameInstance
	errors  []gameErrorRecord
}

func (r *recordingGameNotifier) GameUpdate(g *model.GameInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, g)
}

func (r *recordingGameNotifier) GameError(gameID, username, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, gameErrorRecord{gameID: gameID, username: username, message: message})
}
