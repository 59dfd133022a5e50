package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/surprise-core/internal/command"
	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

// Options configures a Controller.
type Options struct {
	// Config holds timing and randomisation parameters.
	Config config.SessionConfig

	// Queue receives device commands. Required.
	Queue Enqueuer

	// Device supplies random MA values. Required.
	Device MASource

	// Notifier receives status deltas. Optional.
	Notifier Notifier

	// Cues plays audio feedback. Optional.
	Cues CuePlayer

	// Recorders receive interval and session records. Optional.
	Recorders []Recorder

	// Metrics is optional.
	Metrics Metrics

	// Logger is optional structured logger.
	Logger Logger

	// Clock defaults to the wall clock.
	Clock Clock

	// Rand defaults to a randomly seeded PCG source.
	Rand Rand
}

// Controller is the session state machine.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - One mutex guards all session state; timer callbacks take it too.
type Controller struct {
	cfg        config.SessionConfig
	queue      Enqueuer
	device     MASource
	notifier   Notifier
	cues       CuePlayer
	recorders  []Recorder
	metrics    Metrics
	logger     Logger
	clock      Clock
	rnd        Rand
	powerTiers []command.Kind

	mu sync.Mutex

	state          State
	stateEnteredAt time.Time
	planned        time.Duration
	sublevel       Sublevel
	locked         bool
	status         string
	mode           string

	// Session accounting (seconds).
	sessionTotal float64
	onAcc        float64
	offAcc       float64
	intervals    int
	startedAt    time.Time

	modes  []string
	cursor int

	// epoch changes whenever the primary state changes. Primary, failsafe
	// and secondary callbacks are bound to it.
	epoch uint64
	// sessionSeq changes at every session start and end; the session-max
	// callback is bound to it.
	sessionSeq uint64
	// keepaliveSeq changes when the keepalive loop is stopped.
	keepaliveSeq uint64

	primary     Timer
	failsafe    Timer
	sessionMax  Timer
	secondaries []Timer
	keepalive   Timer

	started bool
	closed  bool
}

// New creates a Controller in Idle. Call Start to issue the startup
// commands and begin the keepalive loop.
func New(opts Options) (*Controller, error) {
	if opts.Queue == nil || opts.Device == nil {
		return nil, errors.New("session: queue and device are required")
	}
	cfg := opts.Config
	if len(cfg.Modes) == 0 {
		return nil, fmt.Errorf("%w: no modes", ErrInvalidConfig)
	}
	if len(cfg.PowerTiers) == 0 {
		return nil, fmt.Errorf("%w: no power tiers", ErrInvalidConfig)
	}
	if cfg.AddOnPercent >= 100 || cfg.AddOffPercent >= 100 {
		return nil, fmt.Errorf("%w: add percent must be below 100", ErrInvalidConfig)
	}
	tiers := make([]command.Kind, 0, len(cfg.PowerTiers))
	for _, name := range cfg.PowerTiers {
		k, err := command.ParseKind(name)
		if err != nil || !k.IsPowerTier() {
			return nil, fmt.Errorf("%w: power tier %q", ErrInvalidConfig, name)
		}
		tiers = append(tiers, k)
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	if cfg.AdjustStep == 0 {
		cfg.AdjustStep = 2
	}

	c := &Controller{
		cfg:        cfg,
		queue:      opts.Queue,
		device:     opts.Device,
		notifier:   opts.Notifier,
		cues:       opts.Cues,
		recorders:  opts.Recorders,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		clock:      opts.Clock,
		rnd:        opts.Rand,
		powerTiers: tiers,
		state:      StateIdle,
		status:     "Idle",
		modes:      append([]string(nil), cfg.Modes...),
	}
	if c.notifier == nil {
		c.notifier = noopNotifier{}
	}
	if c.cues == nil {
		c.cues = noopCues{}
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.rnd == nil {
		c.rnd = &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	}

	Shuffle(c.rnd, c.modes)
	c.cursor = c.rnd.IntN(len(c.modes))
	c.stateEnteredAt = c.clock.Now()

	c.logger.Info("session controller created",
		"max_session", cfg.MaxSession.String(),
		"modes", len(c.modes),
		"time_scale", cfg.TimeScale,
	)
	return c, nil
}

// lockedRand serialises a *rand.Rand.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Start releases and re-reserves the device, switches it off, begins the
// keepalive loop and plays the ready cue. Calling Start twice is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	c.queue.Enqueue(command.Simple(command.KindRelease))
	c.queue.Enqueue(command.Simple(command.KindReserve))
	c.queue.Enqueue(command.Off())

	c.keepaliveTick()
	c.cues.Play(CueReady)
	c.publishState()
}

// Stop cancels every timer. Callbacks already running return without effect.
// The controller cannot be restarted.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopPrimary()
	c.failsafe = stopTimer(c.failsafe)
	c.sessionMax = stopTimer(c.sessionMax)
	c.keepalive = stopTimer(c.keepalive)
	c.keepaliveSeq++
	c.logger.Info("session controller stopped", "state", string(c.state))
}

// Dispatch applies an operator action to the current state. Actions that
// have no meaning in the current state are ignored.
//
// Returns:
//   - State: The state after the action
func (c *Controller) Dispatch(a Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.state
	}

	c.logger.Debug("dispatch",
		"action", string(a),
		"state", string(c.state),
		"locked", c.locked,
	)

	switch c.state {
	case StateIdle:
		switch a {
		case ActionActivate, ActionUp:
			c.activate()
		case ActionOff:
			c.manualOff()
		case ActionOn, ActionRight:
			c.toggle()
		case ActionMiddle:
			c.setLevelsFromDevice()
		case ActionReset, ActionLeft:
			c.endSession(false)
		}

	case StateIdleOn:
		switch a {
		case ActionUp:
			c.adjustLevels(c.cfg.AdjustStep)
		case ActionDown:
			c.adjustLevels(-c.cfg.AdjustStep)
		case ActionMiddle:
			c.cues.Play(CueNewMinimum)
			c.setMinimum()
		case ActionOn, ActionRight:
			c.toggle()
		case ActionReset, ActionOff, ActionLeft:
			c.endSession(false)
		}

	case StateWaiting:
		switch a {
		case ActionStart, ActionUp:
			c.startSession()
		case ActionReset, ActionLeft:
			if !c.locked {
				c.endSession(false)
			}
		case ActionDown, ActionLock:
			c.lock()
		}

	case StateStarting, StateOn, StateOff:
		if !c.locked {
			switch a {
			case ActionReset, ActionLeft:
				c.endSession(false)
			case ActionDown, ActionLock:
				c.lock()
			}
			break
		}
		switch a {
		case ActionUp:
			c.adjustLevels(c.cfg.AdjustStep)
		case ActionDown:
			c.adjustLevels(-c.cfg.AdjustStep)
		case ActionMiddle:
			c.cues.Play(CueNewMinimum)
			c.setMinimum()
		case ActionLeft:
			c.cues.Play(CueSorry)
		}
	}

	return c.state
}

// Activate arms a session from Idle. See Dispatch.
func (c *Controller) Activate() State { return c.Dispatch(ActionActivate) }

// StartSession starts an armed session without waiting for the failsafe.
func (c *Controller) StartSession() State { return c.Dispatch(ActionStart) }

// EndSession returns to Idle from any state, cancelling every session timer.
// It is idempotent and ignores the lock.
func (c *Controller) EndSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.endSession(false)
}

// Lock restricts a waiting or running session to level adjustments and
// snapshots the current levels as the floor. It is a no-op outside a session.
func (c *Controller) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !(c.state == StateWaiting || c.state.Active()) {
		return
	}
	c.lock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Locked reports whether the session is locked.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

func stopTimer(t Timer) Timer {
	if t != nil {
		t.Stop()
	}
	return nil
}
