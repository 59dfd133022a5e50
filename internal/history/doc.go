// Package history keeps an append-only log of finished sessions in SQLite.
//
// The Writer implements session.Recorder: it buffers the intervals of the
// running session and, when the session ends, hands the completed record to
// a background goroutine that inserts it. The controller never waits on disk.
//
// The Repository reads the log back for the HTTP API.
package history
