package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nerrad567/surprise-core/internal/session"
)

type mockInserter struct {
	mu       sync.Mutex
	sessions []*Session
	err      error
	block    chan struct{}
	inserted chan struct{}
}

func newMockInserter() *mockInserter {
	return &mockInserter{inserted: make(chan struct{}, 16)}
}

func (m *mockInserter) Insert(ctx context.Context, s *Session) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	err := m.err
	m.mu.Unlock()
	m.inserted <- struct{}{}
	return err
}

func (m *mockInserter) all() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Session(nil), m.sessions...)
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (m *mockLogger) Info(string, ...any) {}
func (m *mockLogger) Warn(msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}
func (m *mockLogger) Error(msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, msg)
}

func waitInserted(t *testing.T, m *mockInserter) {
	t.Helper()
	select {
	case <-m.inserted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for insert")
	}
}

func TestWriter_RecordsSessionWithIntervals(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newMockInserter()
	w := NewWriter(repo, WriterOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	start := time.Date(2026, 10, 1, 20, 0, 0, 0, time.UTC)
	w.RecordInterval(session.IntervalRecord{State: session.StateOn, Seconds: 45, Terms: []int{25, 20}, At: start})
	w.RecordInterval(session.IntervalRecord{State: session.StateOff, Seconds: 10, Terms: []int{100}, Teased: true, At: start.Add(45 * time.Second)})
	w.RecordSession(session.SessionRecord{
		StartedAt:  start,
		EndedAt:    start.Add(time.Minute),
		OnSeconds:  45,
		OffSeconds: 10,
		Intervals:  2,
		Locked:     true,
	})
	waitInserted(t, repo)

	// The next session starts with an empty interval log.
	w.RecordSession(session.SessionRecord{StartedAt: start, EndedAt: start.Add(time.Hour)})
	waitInserted(t, repo)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := repo.all()
	if len(got) != 2 {
		t.Fatalf("inserted %d sessions, want 2", len(got))
	}
	first := got[0]
	if first.ID == "" || first.ID == got[1].ID {
		t.Errorf("session IDs = %q, %q, want unique non-empty", first.ID, got[1].ID)
	}
	if !first.Locked || first.Intervals != 2 || len(first.Log) != 2 {
		t.Errorf("first session = %+v", first)
	}
	if first.Log[0].Seq != 1 || first.Log[1].Seq != 2 {
		t.Errorf("interval seq = %d, %d, want 1, 2", first.Log[0].Seq, first.Log[1].Seq)
	}
	if first.Log[1].State != "Off" || !first.Log[1].Teased {
		t.Errorf("second interval = %+v", first.Log[1])
	}
	if len(got[1].Log) != 0 {
		t.Errorf("second session log = %v, want empty", got[1].Log)
	}
}

func TestWriter_DropsWhenFull(t *testing.T) {
	repo := newMockInserter()
	logger := &mockLogger{}
	w := NewWriter(repo, WriterOptions{BufferSize: 1, Logger: logger})

	// No Run loop: the first record fills the buffer, the second is dropped.
	w.RecordSession(session.SessionRecord{})
	w.RecordSession(session.SessionRecord{})

	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one drop warning", logger.warns)
	}
	if len(w.pending) != 1 {
		t.Errorf("pending = %d, want 1", len(w.pending))
	}
}

func TestWriter_FlushesOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newMockInserter()
	w := NewWriter(repo, WriterOptions{BufferSize: 4})
	for range 3 {
		w.RecordSession(session.SessionRecord{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := len(repo.all()); n != 3 {
		t.Errorf("inserted %d sessions after shutdown, want 3", n)
	}
}

func TestWriter_LogsInsertFailure(t *testing.T) {
	repo := newMockInserter()
	repo.err = errors.New("disk full")
	logger := &mockLogger{}
	w := NewWriter(repo, WriterOptions{Logger: logger})

	w.RecordSession(session.SessionRecord{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(logger.errs) != 1 {
		t.Errorf("errors logged = %v, want 1", logger.errs)
	}
}

func TestWriter_WithSQLite(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	w := NewWriter(repo, WriterOptions{})

	at := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)
	w.RecordInterval(session.IntervalRecord{State: session.StateOn, Seconds: 30, Terms: []int{30}, At: at})
	w.RecordSession(session.SessionRecord{StartedAt: at, EndedAt: at.Add(30 * time.Second), OnSeconds: 30, Intervals: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("Total = %d, want 1", res.Total)
	}
	got, err := repo.Get(context.Background(), res.Sessions[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Log) != 1 || got.Log[0].Seconds != 30 {
		t.Errorf("interval log = %+v", got.Log)
	}
}
