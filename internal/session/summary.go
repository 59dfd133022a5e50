package session

import (
	"fmt"
	"time"
)

// Summary is a point-in-time view of the session for observers.
type Summary struct {
	State    State    `json:"state"`
	Sublevel Sublevel `json:"sublevel,omitempty"`
	Locked   bool     `json:"locked"`
	Status   string   `json:"status"`
	Mode     string   `json:"mode,omitempty"`

	// Planned is how long the current state's timer was set for.
	Planned time.Duration `json:"-"`
	// Elapsed is how long the controller has been in the current state.
	Elapsed time.Duration `json:"-"`

	PlannedSecs  float64 `json:"planned_secs"`
	ElapsedSecs  float64 `json:"elapsed_secs"`
	SessionTotal float64 `json:"session_total_secs"`
	OnSeconds    float64 `json:"on_secs"`
	OffSeconds   float64 `json:"off_secs"`
	Intervals    int     `json:"intervals"`
}

// Summary returns the current state, planned and elapsed time in state,
// and the scheduled session total.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.clock.Now().Sub(c.stateEnteredAt)
	return Summary{
		State:        c.state,
		Sublevel:     c.sublevel,
		Locked:       c.locked,
		Status:       c.status,
		Mode:         c.mode,
		Planned:      c.planned,
		Elapsed:      elapsed,
		PlannedSecs:  c.planned.Seconds(),
		ElapsedSecs:  elapsed.Seconds(),
		SessionTotal: c.sessionTotal,
		OnSeconds:    c.onAcc,
		OffSeconds:   c.offAcc,
		Intervals:    c.intervals,
	}
}

// TimerLine renders s as "<state> <elapsed>/<planned>s, <total>s total",
// or just the state name when no session timer is running.
func (s Summary) TimerLine() string {
	switch s.State {
	case StateIdle, StateIdleOn, StateWaiting:
		return string(s.State)
	}
	return fmt.Sprintf("%s %d/%ds, %ds total",
		s.State,
		int(s.Elapsed.Seconds()),
		int(s.Planned.Seconds()),
		int(s.SessionTotal),
	)
}
