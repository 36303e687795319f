package game

import (
	"testing"
	"time"

	"github.com/forumchat/internal/model"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newStartedGame(t *testing.T, pile int) *model.GameInstance {
	t.Helper()
	g := NewNim("game-1", pile, now)
	require.NoError(t, Join(g, "alice", now))
	require.NoError(t, Join(g, "bob", now))
	return g
}

func TestNewNim_StartsWaiting(t *testing.T) {
	req := require.New(t)
	g := NewNim("game-1", 21, now)

	req.Equal(model.GameStatusWaiting, g.State.Status)
	req.Empty(g.Players)
	req.Equal(21, g.State.RemainingObjects)
	req.Empty(g.State.Moves)
}

func TestJoin_SecondPlayerStartsGame(t *testing.T) {
	req := require.New(t)
	g := NewNim("game-1", 21, now)

	req.NoError(Join(g, "alice", now))
	req.Equal(model.GameStatusWaiting, g.State.Status)

	req.NoError(Join(g, "bob", now))
	req.Equal(model.GameStatusInProgress, g.State.Status)
	req.Equal([]string{"alice", "bob"}, g.Players)
}

func TestJoin_Rejections(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 21)

	req.ErrorIs(Join(g, "alice", now), ErrAlreadyJoined)
	req.ErrorIs(Join(g, "carol", now), ErrGameFull)
	req.Equal([]string{"alice", "bob"}, g.Players)
}

func TestApplyMove_TurnAlternatesByMoveCount(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 21)

	moves := []struct {
		player string
		take   int
	}{
		{"alice", 3}, {"bob", 1}, {"alice", 2}, {"bob", 3},
	}
	total := 0
	for i, m := range moves {
		req.Equal(m.player, CurrentTurn(g))
		req.NoError(ApplyMove(g, m.player, m.take, now))
		total += m.take
		req.Equal(21-total, g.State.RemainingObjects)
		req.Equal(m.player, g.State.Moves[i].PlayerID)
		req.Equal(21-total, g.State.Moves[i].Remaining)
	}
	req.Len(g.State.Moves, 4)
}

func TestApplyMove_OutOfTurn(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 21)

	req.NoError(ApplyMove(g, "alice", 1, now))

	err := ApplyMove(g, "alice", 1, now)
	req.ErrorIs(err, ErrNotYourTurn)
	req.Equal(20, g.State.RemainingObjects)
	req.Len(g.State.Moves, 1)
}

func TestApplyMove_InvalidCounts(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 21)

	for _, take := range []int{0, 4, -1} {
		err := ApplyMove(g, "alice", take, now)
		req.ErrorIs(err, ErrInvalidMove)
	}
	// Rejected moves must not mutate anything.
	req.Equal(21, g.State.RemainingObjects)
	req.Empty(g.State.Moves)
	req.Equal("alice", CurrentTurn(g))
}

func TestApplyMove_CannotExceedPile(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 2)

	req.ErrorIs(ApplyMove(g, "alice", 3, now), ErrInvalidMove)
	req.Equal(2, g.State.RemainingObjects)
}

func TestApplyMove_BeforeStart(t *testing.T) {
	req := require.New(t)
	g := NewNim("game-1", 21, now)
	req.NoError(Join(g, "alice", now))

	req.ErrorIs(ApplyMove(g, "alice", 1, now), ErrGameNotInProgress)
}

func TestApplyMove_MisereLastTakerLoses(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 3)

	req.NoError(ApplyMove(g, "alice", 2, now))
	req.Equal(1, g.State.RemainingObjects)
	req.Equal("bob", CurrentTurn(g))

	req.NoError(ApplyMove(g, "bob", 1, now))
	req.Equal(0, g.State.RemainingObjects)
	req.Equal(model.GameStatusOver, g.State.Status)
	req.Equal([]string{"alice"}, g.State.Winners)
	req.NotContains(g.State.Winners, "bob")
}

func TestApplyMove_AfterGameOver(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 1)
	req.NoError(ApplyMove(g, "alice", 1, now))
	req.Equal(model.GameStatusOver, g.State.Status)

	req.ErrorIs(ApplyMove(g, "bob", 1, now), ErrGameNotInProgress)
	req.Len(g.State.Moves, 1)
}

func TestLeave(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 21)

	req.True(Leave(g, "bob", now))
	req.Equal([]string{"alice"}, g.Players)
	req.False(Leave(g, "bob", now))

	over := newStartedGame(t, 1)
	req.NoError(ApplyMove(over, "alice", 1, now))
	// Finished games are immutable.
	req.False(Leave(over, "alice", now))
	req.Equal([]string{"alice", "bob"}, over.Players)
}

func TestForfeit(t *testing.T) {
	req := require.New(t)
	g := newStartedGame(t, 21)

	Leave(g, "bob", now)
	Forfeit(g, []string{"alice"}, now)

	req.Equal(model.GameStatusOver, g.State.Status)
	req.Equal([]string{"alice"}, g.State.Winners)
}
