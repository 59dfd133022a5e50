package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/surprise-core/internal/session"
)

const (
	defaultBufferSize = 16
	insertTimeout     = 5 * time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Inserter is the write side of a Repository.
type Inserter interface {
	Insert(ctx context.Context, s *Session) error
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	// BufferSize is how many finished sessions may wait for insertion.
	BufferSize int

	// Logger is optional.
	Logger Logger
}

// Writer records sessions without blocking the caller.
//
// Thread Safety:
//   - RecordInterval and RecordSession are safe for concurrent use.
//   - Run must be called exactly once.
type Writer struct {
	repo    Inserter
	logger  Logger
	pending chan *Session

	mu  sync.Mutex
	log []Interval
}

// NewWriter creates a Writer that inserts through repo.
func NewWriter(repo Inserter, opts WriterOptions) *Writer {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Writer{
		repo:    repo,
		logger:  opts.Logger,
		pending: make(chan *Session, opts.BufferSize),
	}
}

// RecordInterval buffers an interval of the running session.
func (w *Writer) RecordInterval(rec session.IntervalRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.log = append(w.log, Interval{
		Seq:     len(w.log) + 1,
		State:   string(rec.State),
		Seconds: rec.Seconds,
		Terms:   append([]int(nil), rec.Terms...),
		Teased:  rec.Teased,
		At:      rec.At,
	})
}

// RecordSession closes the running session and queues it for insertion.
// The session is dropped with a warning if the buffer is full.
func (w *Writer) RecordSession(rec session.SessionRecord) {
	w.mu.Lock()
	log := w.log
	w.log = nil
	w.mu.Unlock()

	s := &Session{
		ID:         uuid.NewString(),
		StartedAt:  rec.StartedAt,
		EndedAt:    rec.EndedAt,
		OnSeconds:  rec.OnSeconds,
		OffSeconds: rec.OffSeconds,
		Intervals:  rec.Intervals,
		Forced:     rec.Forced,
		Locked:     rec.Locked,
		Log:        log,
	}

	select {
	case w.pending <- s:
	default:
		w.logger.Warn("dropping session record", "id", s.ID, "error", ErrWriterFull)
	}
}

// Run inserts queued sessions until ctx is cancelled, then flushes what
// is already queued.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case s := <-w.pending:
			w.insert(ctx, s)
		case <-ctx.Done():
			w.flush()
			return nil
		}
	}
}

func (w *Writer) flush() {
	for {
		select {
		case s := <-w.pending:
			w.insert(context.Background(), s)
		default:
			return
		}
	}
}

func (w *Writer) insert(ctx context.Context, s *Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()

	if err := w.repo.Insert(ctx, s); err != nil {
		w.logger.Error("failed to record session", "id", s.ID, "error", err)
		return
	}
	w.logger.Info("session recorded",
		"id", s.ID,
		"on_seconds", s.OnSeconds,
		"off_seconds", s.OffSeconds,
		"intervals", s.Intervals,
		"forced", s.Forced,
	)
}
