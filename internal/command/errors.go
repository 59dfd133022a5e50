package command

import "errors"

// Domain errors for the command package.
var (
	// ErrUnknownKind is returned when a command kind is not in the vocabulary.
	ErrUnknownKind = errors.New("command: unknown kind")

	// ErrQueueClosed is returned by Dequeue once the queue has been closed
	// and emptied.
	ErrQueueClosed = errors.New("command: queue closed")
)
