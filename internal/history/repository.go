package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Repository defines the session log operations.
type Repository interface {
	Insert(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores sessions in the sessions and session_intervals tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new session repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert writes a session and its intervals in one transaction.
// The ID must already be set.
func (r *SQLiteRepository) Insert(ctx context.Context, s *Session) error {
	if s.ID == "" {
		return errors.New("history: inserting session with empty id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning session insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, on_seconds, off_seconds, intervals, forced, locked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		formatTime(s.StartedAt), formatTime(s.EndedAt),
		s.OnSeconds, s.OffSeconds, s.Intervals,
		boolInt(s.Forced), boolInt(s.Locked),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	for _, iv := range s.Log {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_intervals (session_id, seq, state, seconds, terms, teased, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.ID, iv.Seq, iv.State, iv.Seconds, joinTerms(iv.Terms), boolInt(iv.Teased), formatTime(iv.At),
		)
		if err != nil {
			return fmt.Errorf("inserting interval %d: %w", iv.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session insert: %w", err)
	}
	return nil
}

// Get returns one session with its interval log.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, on_seconds, off_seconds, intervals, forced, locked
		 FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, state, seconds, terms, teased, at
		 FROM session_intervals WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying intervals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var iv Interval
		var terms, at string
		var teased int
		if err := rows.Scan(&iv.Seq, &iv.State, &iv.Seconds, &terms, &teased, &at); err != nil {
			return nil, fmt.Errorf("scanning interval: %w", err)
		}
		iv.Teased = teased != 0
		if iv.Terms, err = splitTerms(terms); err != nil {
			return nil, err
		}
		if iv.At, err = parseTime(at); err != nil {
			return nil, err
		}
		s.Log = append(s.Log, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating intervals: %w", err)
	}
	return s, nil
}

// List returns sessions ordered by most recent end first, without interval logs.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, on_seconds, off_seconds, intervals, forced, locked
		 FROM sessions ORDER BY ended_at DESC LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return &ListResult{
		Sessions: sessions,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var started, ended string
	var forced, locked int
	err := row.Scan(&s.ID, &started, &ended, &s.OnSeconds, &s.OffSeconds, &s.Intervals, &forced, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	s.Forced = forced != 0
	s.Locked = locked != 0
	if s.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if s.EndedAt, err = parseTime(ended); err != nil {
		return nil, err
	}
	return &s, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// joinTerms stores interval terms as a comma-separated list.
func joinTerms(terms []int) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = strconv.Itoa(t)
	}
	return strings.Join(parts, ",")
}

func splitTerms(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	terms := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing interval terms %q: %w", s, err)
		}
		terms[i] = n
	}
	return terms, nil
}
