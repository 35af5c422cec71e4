package game

import "errors"

// Taxonomized game-rule errors. Every invalid input maps to one of
// these and leaves the model unchanged; the server translates them to
// wire error codes.
var (
	ErrDuplicatePlayer  = errors.New("player id already exists")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrNotSpawned       = errors.New("player has no position yet")
	ErrInvalidMove      = errors.New("invalid move delta")
	ErrMoveFailed       = errors.New("move rejected")
	ErrInvalidDirection = errors.New("invalid fire direction")
	ErrBulletInFlight   = errors.New("bullet already in flight")
	ErrPlayerNotFound   = errors.New("player not found")
)
