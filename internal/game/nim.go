// Package game implements the turn-based game engine. The engine is pure
// state transition logic over model.GameInstance: every operation validates
// fully before mutating, so a rejected call leaves the instance untouched.
package game

import (
	"errors"
	"time"

	"github.com/forumchat/internal/model"
)

const (
	// MaxPlayers is the seat count for Nim.
	MaxPlayers = 2
	// MinTake and MaxTake bound how many objects one move may remove.
	MinTake = 1
	MaxTake = 3
)

var (
	ErrGameFull          = errors.New("game already has two players")
	ErrAlreadyJoined     = errors.New("player already joined this game")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrInvalidMove       = errors.New("move must remove between 1 and 3 objects and not exceed the pile")
)

// NewNim creates a game in WAITING_TO_START with an empty seat list and the
// configured starting pile.
func NewNim(gameID string, pileSize int, now time.Time) *model.GameInstance {
	return &model.GameInstance{
		GameID:   gameID,
		GameType: model.GameTypeNim,
		Players:  []string{},
		State: model.GameState{
			Status:           model.GameStatusWaiting,
			Moves:            []model.GameMove{},
			RemainingObjects: pileSize,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Join seats a player. The game starts once the second seat is taken.
func Join(g *model.GameInstance, username string, now time.Time) error {
	if g.HasPlayer(username) {
		return ErrAlreadyJoined
	}
	if len(g.Players) >= MaxPlayers {
		return ErrGameFull
	}
	g.Players = append(g.Players, username)
	if len(g.Players) == MaxPlayers && g.State.Status == model.GameStatusWaiting {
		g.State.Status = model.GameStatusInProgress
	}
	g.UpdatedAt = now
	return nil
}

// CurrentTurn returns the player whose move it is. Turn order alternates
// strictly by accepted move count; empty when the game is not in progress.
func CurrentTurn(g *model.GameInstance) string {
	if g.State.Status != model.GameStatusInProgress || len(g.Players) == 0 {
		return ""
	}
	return g.Players[len(g.State.Moves)%len(g.Players)]
}

// ApplyMove validates and applies one move for username.
//
// Misère rule: the player who removes the last object loses; the opposing
// player(s) become the winners and the game is OVER.
func ApplyMove(g *model.GameInstance, username string, numObjects int, now time.Time) error {
	if g.State.Status != model.GameStatusInProgress {
		return ErrGameNotInProgress
	}
	if CurrentTurn(g) != username {
		return ErrNotYourTurn
	}
	if numObjects < MinTake || numObjects > MaxTake || numObjects > g.State.RemainingObjects {
		return ErrInvalidMove
	}

	g.State.RemainingObjects -= numObjects
	g.State.Moves = append(g.State.Moves, model.GameMove{
		PlayerID:   username,
		NumObjects: numObjects,
		Remaining:  g.State.RemainingObjects,
	})
	if g.State.RemainingObjects == 0 {
		g.State.Status = model.GameStatusOver
		g.State.Winners = winnersExcept(g.Players, username)
	}
	g.UpdatedAt = now
	return nil
}

// Leave removes a player's seat. A finished game is immutable, so leaving
// one is a no-op. Forfeiture policy (who wins an abandoned game) is the
// caller's decision, not the engine's.
func Leave(g *model.GameInstance, username string, now time.Time) bool {
	if g.State.Status == model.GameStatusOver {
		return false
	}
	for i, p := range g.Players {
		if p == username {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			g.UpdatedAt = now
			return true
		}
	}
	return false
}

// Forfeit ends an in-progress game in favor of the players still seated.
func Forfeit(g *model.GameInstance, winners []string, now time.Time) {
	g.State.Status = model.GameStatusOver
	g.State.Winners = winners
	g.UpdatedAt = now
}

func winnersExcept(players []string, loser string) []string {
	winners := make([]string, 0, len(players))
	for _, p := range players {
		if p != loser {
			winners = append(winners, p)
		}
	}
	return winners
}
