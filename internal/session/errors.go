package session

import "errors"

// Domain errors for the session package.
var (
	// ErrUnknownAction is returned when an operator action name is not recognised.
	ErrUnknownAction = errors.New("session: unknown action")

	// ErrInvalidConfig is returned when session parameters cannot be used.
	ErrInvalidConfig = errors.New("session: invalid configuration")
)
