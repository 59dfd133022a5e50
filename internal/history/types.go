package history

import "time"

// Session is one finished session.
type Session struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    time.Time  `json:"ended_at"`
	OnSeconds  float64    `json:"on_seconds"`
	OffSeconds float64    `json:"off_seconds"`
	Intervals  int        `json:"intervals"`
	Forced     bool       `json:"forced"`
	Locked     bool       `json:"locked"`
	Log        []Interval `json:"log,omitempty"`
}

// Duration is the wall time between start and end.
func (s Session) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// Interval is one randomised On or Off period within a session.
type Interval struct {
	Seq     int       `json:"seq"`
	State   string    `json:"state"`
	Seconds float64   `json:"seconds"`
	Terms   []int     `json:"terms,omitempty"`
	Teased  bool      `json:"teased"`
	At      time.Time `json:"at"`
}

// Filter controls which sessions to return.
type Filter struct {
	Limit  int // default 20, max 200
	Offset int
}

// ListResult contains a page of sessions, most recent first.
type ListResult struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
