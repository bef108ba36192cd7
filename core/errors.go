package core

import "errors"

// Store failures. Adapters wrap driver errors with one of these two.
var (
	// ErrUnavailable means the store could not be reached in time.
	ErrUnavailable = errors.New("could not connect to the store")
	// ErrBackend means the store was reached but the command failed.
	ErrBackend = errors.New("could not execute store command")
)

var (
	// ErrUnexpectedState means the store holds data the service never writes.
	ErrUnexpectedState = errors.New("store gave an unexpected response")
	ErrBoardExists     = errors.New("board already exists")
	ErrBoardNotFound   = errors.New("no such board")
	ErrPlayerNotFound  = errors.New("no such player on board")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidOrder    = errors.New("invalid sorting order")
	ErrTokenGeneration = errors.New("could not generate token")
)
