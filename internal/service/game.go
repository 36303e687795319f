package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forumchat/internal/game"
	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
	"github.com/forumchat/internal/repository"
	"github.com/google/uuid"
)

// GameService owns the lifecycle of game instances. Every mutation of one
// game is serialized behind that game's lock, so concurrent moves are
// accepted strictly one at a time against fresh state.
type GameService struct {
	games    repository.GameRepository
	notifier GameNotifier
	pileSize int
	locks    *keyedMutex
}

func NewGameService(games repository.GameRepository, pileSize int) *GameService {
	if pileSize <= 0 {
		pileSize = 21
	}
	return &GameService{
		games:    games,
		pileSize: pileSize,
		locks:    newKeyedMutex(),
	}
}

func (s *GameService) SetNotifier(n GameNotifier) {
	s.notifier = n
}

// CreateGame creates a new instance in WAITING_TO_START.
func (s *GameService) CreateGame(ctx context.Context, gameType string) (*model.GameInstance, error) {
	defer logger.DeferLogDuration("gameService.CreateGame", time.Now())()

	if gameType != model.GameTypeNim {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, gameType)
	}
	g := game.NewNim(uuid.New().String(), s.pileSize, time.Now().UTC())
	if err := s.games.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Join seats username in the game and broadcasts the new state. Rule
// violations are reported back to the acting player only.
func (s *GameService) Join(ctx context.Context, gameID, username string) (*model.GameInstance, error) {
	defer logger.DeferLogDuration("gameService.Join", time.Now())()

	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}

	unlock := s.locks.Lock(gameID)
	defer unlock()

	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := game.Join(g, username, time.Now().UTC()); err != nil {
		s.reportError(gameID, username, err)
		return nil, err
	}
	if err := s.games.Update(ctx, g); err != nil {
		return nil, err
	}
	s.broadcast(g)
	return g, nil
}

// ApplyMove validates and applies one move. On success the updated
// authoritative snapshot is broadcast to the game's room; on a rule
// violation nothing is mutated and only the acting player is told.
func (s *GameService) ApplyMove(ctx context.Context, gameID, username string, numObjects int) (*model.GameInstance, error) {
	defer logger.DeferLogDuration("gameService.ApplyMove", time.Now())()

	unlock := s.locks.Lock(gameID)
	defer unlock()

	g, err := s.load(ctx, gameID)
	if err != nil {
		s.reportError(gameID, username, err)
		return nil, err
	}
	if err := game.ApplyMove(g, username, numObjects, time.Now().UTC()); err != nil {
		s.reportError(gameID, username, err)
		return nil, err
	}
	if err := s.games.Update(ctx, g); err != nil {
		return nil, err
	}
	s.broadcast(g)
	return g, nil
}

// Leave removes username from the game. Leaving a finished game is a
// no-op. Abandoning a game in progress forfeits it: the players still
// seated are recorded as winners.
func (s *GameService) Leave(ctx context.Context, gameID, username string) (*model.GameInstance, error) {
	defer logger.DeferLogDuration("gameService.Leave", time.Now())()

	unlock := s.locks.Lock(gameID)
	defer unlock()

	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	wasInProgress := g.State.Status == model.GameStatusInProgress
	if !game.Leave(g, username, time.Now().UTC()) {
		return g, nil
	}
	if wasInProgress && len(g.Players) > 0 {
		game.Forfeit(g, append([]string(nil), g.Players...), time.Now().UTC())
	}
	if err := s.games.Update(ctx, g); err != nil {
		return nil, err
	}
	s.broadcast(g)
	return g, nil
}

// GetGame returns the authoritative snapshot.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.GameInstance, error) {
	defer logger.DeferLogDuration("gameService.GetGame", time.Now())()
	return s.load(ctx, gameID)
}

// ListGames returns games filtered by status, newest first.
func (s *GameService) ListGames(ctx context.Context, status model.GameStatus) ([]model.GameInstance, error) {
	defer logger.DeferLogDuration("gameService.ListGames", time.Now())()
	return s.games.ListByStatus(ctx, status)
}

func (s *GameService) load(ctx context.Context, gameID string) (*model.GameInstance, error) {
	g, err := s.games.GetByID(ctx, gameID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GameService) broadcast(g *model.GameInstance) {
	if s.notifier != nil {
		s.notifier.GameUpdate(g)
	}
}

func (s *GameService) reportError(gameID, username string, err error) {
	if s.notifier != nil {
		s.notifier.GameError(gameID, username, err.Error())
	}
}
