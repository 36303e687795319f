package service

import "errors"

// Validation failures are detected before any mutation; a rejected request
// never leaves partial state behind. Game-rule failures (turn order, move
// legality, conflicts) are defined next to the engine in internal/game.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrChatNotFound   = errors.New("chat not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrGameNotFound   = errors.New("game not found")
	ErrUnknownGame    = errors.New("unsupported game type")
)
