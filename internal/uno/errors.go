package uno

import "errors"

// Action errors returned by session transitions. Callers compare with errors.Is.
var (
	ErrNotYourTurn        = errors.New("not your turn")
	ErrIllegalCard        = errors.New("illegal card")
	ErrGameNotActive      = errors.New("game not active")
	ErrPlayerNotSeated    = errors.New("player not seated")
	ErrInvalidColorChoice = errors.New("invalid color choice")

	ErrTooFewPlayers = errors.New("at least two players are required")
	ErrNotInLobby    = errors.New("session already started")
)
