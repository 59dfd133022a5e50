package history

import "errors"

var (
	// ErrNotFound is returned when no session exists with the given ID.
	ErrNotFound = errors.New("history: session not found")

	// ErrWriterFull is returned when a finished session is dropped because
	// the write buffer is full.
	ErrWriterFull = errors.New("history: write buffer full")
)
