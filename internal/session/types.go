package session

import (
	"fmt"
	"time"

	"github.com/nerrad567/surprise-core/internal/command"
)

// State is the controller's position in the session state machine.
type State string

// Session states.
const (
	StateIdle     State = "Idle"
	StateIdleOn   State = "IdleOn"
	StateWaiting  State = "Waiting"
	StateStarting State = "Starting"
	StateOn       State = "On"
	StateOff      State = "Off"
)

// Active reports whether s is part of a running session.
func (s State) Active() bool {
	return s == StateStarting || s == StateOn || s == StateOff
}

// Sublevel selects which channels IdleOn drives at max.
type Sublevel string

// IdleOn sublevels.
const (
	SublevelNone Sublevel = ""
	SublevelA    Sublevel = "A"
	SublevelB    Sublevel = "B"
	SublevelAB   Sublevel = "AB"
)

// Action is an operator input.
type Action string

// Operator actions. The first five are the clicker buttons.
const (
	ActionUp       Action = "up"
	ActionDown     Action = "down"
	ActionLeft     Action = "left"
	ActionRight    Action = "right"
	ActionMiddle   Action = "middle"
	ActionActivate Action = "activate"
	ActionStart    Action = "start"
	ActionReset    Action = "reset"
	ActionOn       Action = "on"
	ActionOff      Action = "off"
	ActionLock     Action = "lock"
)

var actions = map[Action]struct{}{
	ActionUp: {}, ActionDown: {}, ActionLeft: {}, ActionRight: {}, ActionMiddle: {},
	ActionActivate: {}, ActionStart: {}, ActionReset: {}, ActionOn: {}, ActionOff: {},
	ActionLock: {},
}

// ParseAction converts an action name to an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// TimerKind tags a scheduled callback.
type TimerKind int

// Timer kinds.
const (
	TimerPrimary TimerKind = iota
	TimerFailsafe
	TimerSessionMax
	TimerSecondary
	TimerKeepalive
)

func (k TimerKind) String() string {
	switch k {
	case TimerPrimary:
		return "primary"
	case TimerFailsafe:
		return "failsafe"
	case TimerSessionMax:
		return "session-max"
	case TimerSecondary:
		return "secondary"
	case TimerKeepalive:
		return "keepalive"
	default:
		return fmt.Sprintf("TimerKind(%d)", int(k))
	}
}

// Cue names played by the controller.
const (
	CueReady            = "ready"
	CueActivated        = "activated"
	CueStarting         = "starting"
	CueReset            = "reset"
	CueLocked           = "locked"
	CueSorry            = "sorry"
	CueMaxA             = "max-a"
	CueMaxB             = "max-b"
	CueMaxAB            = "a-and-b"
	CueNewMinimum       = "new_minimum_set"
	CueLevelsFromDevice = "levels_set_from_device"
)

// Status fields published to the Notifier.
const (
	FieldState  = "state"
	FieldStatus = "status"
	FieldLocked = "locked"
)

// Enqueuer accepts commands for the device consumer. Enqueue must not block.
type Enqueuer interface {
	Enqueue(cmd command.Command)
}

// MASource supplies a random multi-adjust value in the device's range.
type MASource interface {
	RandomMA() int
}

// Notifier receives status deltas. Publish must not block.
type Notifier interface {
	Publish(field, value string)
}

// CuePlayer plays a named audio cue. Play must not block.
type CuePlayer interface {
	Play(name string)
}

// IntervalRecord describes one randomised On or Off interval.
type IntervalRecord struct {
	State   State
	Seconds float64
	Terms   []int
	Teased  bool
	At      time.Time
}

// SessionRecord summarises a finished session.
type SessionRecord struct {
	StartedAt  time.Time
	EndedAt    time.Time
	OnSeconds  float64
	OffSeconds float64
	Intervals  int
	Forced     bool
	Locked     bool
}

// Recorder receives interval and session records. Calls must not block.
type Recorder interface {
	RecordInterval(rec IntervalRecord)
	RecordSession(rec SessionRecord)
}

// Metrics receives state machine counters.
type Metrics interface {
	Transition(from, to State)
	SessionEnded(forced bool)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopNotifier struct{}

func (noopNotifier) Publish(string, string) {}

type noopCues struct{}

func (noopCues) Play(string) {}

type noopMetrics struct{}

func (noopMetrics) Transition(State, State) {}
func (noopMetrics) SessionEnded(bool)       {}
