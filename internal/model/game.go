package model

import "time"

// GameStatus is a closed set; transitions only ever move forward
// (WAITING_TO_START → IN_PROGRESS → OVER).
type GameStatus string

const (
	GameStatusWaiting    GameStatus = "WAITING_TO_START"
	GameStatusInProgress GameStatus = "IN_PROGRESS"
	GameStatusOver       GameStatus = "OVER"
)

const GameTypeNim = "Nim"

// GameMove records one accepted move. Never mutated after insertion.
type GameMove struct {
	PlayerID   string `json:"playerID"`
	NumObjects int    `json:"numObjects"`
	// Remaining is the pile size after this move was applied.
	Remaining int `json:"remainingObjects"`
}

// GameState carries the status-dependent parts of a game: Moves and
// RemainingObjects are meaningful from IN_PROGRESS on, Winners only
// once OVER.
type GameState struct {
	Status           GameStatus `json:"status"`
	Moves            []GameMove `json:"moves"`
	RemainingObjects int        `json:"remainingObjects"`
	Winners          []string   `json:"winners,omitempty"`
}

// GameInstance is the authoritative state of one turn-based game.
// Player order determines turn order.
type GameInstance struct {
	GameID    string    `json:"gameID"`
	GameType  string    `json:"gameType"`
	Players   []string  `json:"players"`
	State     GameState `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPlayer reports whether username already joined this game.
func (g *GameInstance) HasPlayer(username string) bool {
	for _, p := range g.Players {
		if p == username {
			return true
		}
	}
	return false
}
