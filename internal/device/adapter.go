package device

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/surprise-core/internal/command"
	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

// Cue names played by the adapter.
const (
	CueConnected         = "connected"
	CueConnectionProblem = "device_connection_problem"
	CueSorry             = "sorry"
)

const (
	defaultReconnectInitial = 200 * time.Millisecond
	defaultReconnectMax     = 5 * time.Second
	defaultNotifyEvery      = 10
)

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	// Driver is the backend transport. Required.
	Driver Driver

	// Config supplies ceilings, multipliers and reconnect timing.
	Config config.DeviceConfig

	// Logger is optional structured logger.
	Logger Logger

	// Cues is optional; nil disables audio feedback.
	Cues CuePlayer

	// Metrics is optional.
	Metrics Metrics

	// Rand is optional; nil seeds a new source.
	Rand *rand.Rand
}

// Adapter validates commands, keeps level bookkeeping and drives a Driver.
type Adapter struct {
	driver  Driver
	cfg     config.DeviceConfig
	logger  Logger
	cues    CuePlayer
	metrics Metrics

	mu        sync.Mutex
	levels    Levels
	connected bool
	seeded    bool // levels loaded from the device at least once
	reserved  bool // host override held; restored after a reconnect
	rnd       *rand.Rand
}

// NewAdapter creates an Adapter. It does not connect.
func NewAdapter(opts AdapterOptions) (*Adapter, error) {
	if opts.Driver == nil {
		return nil, errors.New("device: driver is required")
	}
	a := &Adapter{
		driver:  opts.Driver,
		cfg:     opts.Config,
		logger:  opts.Logger,
		cues:    opts.Cues,
		metrics: opts.Metrics,
		rnd:     opts.Rand,
		levels: NewLevels(opts.Config.HardMaxA, opts.Config.HardMaxB, Multipliers{
			MaxPlus: opts.Config.MaxPlusLevel,
			Normal:  opts.Config.NormalLevel,
			Low:     opts.Config.LowLevel,
		}),
	}
	if a.logger == nil {
		a.logger = noopLogger{}
	}
	if a.cues == nil {
		a.cues = noopCues{}
	}
	if a.metrics == nil {
		a.metrics = noopMetrics{}
	}
	if a.rnd == nil {
		a.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return a, nil
}

// Levels returns a snapshot of the current levels.
func (a *Adapter) Levels() Levels {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.levels
}

// Connected reports whether the last Connect or Reconnect succeeded and no
// I/O error has been seen since.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Backend returns the driver name.
func (a *Adapter) Backend() string {
	return a.driver.Name()
}

// RandomMA returns a uniformly random MA value within the driver's range.
func (a *Adapter) RandomMA() int {
	low, high := a.driver.MARange()
	a.mu.Lock()
	defer a.mu.Unlock()
	return low + a.rnd.IntN(high-low+1)
}

// Connect opens the driver. On the first successful connect the device's
// current levels become the starting max; later connects keep the levels the
// user has tuned since.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.driver.Connect(ctx); err != nil {
		return fmt.Errorf("connecting %s: %w", a.driver.Name(), err)
	}

	a.mu.Lock()
	seeded := a.seeded
	a.mu.Unlock()

	if !seeded {
		r, err := a.driver.ReadLevels(ctx)
		if err != nil {
			_ = a.driver.Close()
			return fmt.Errorf("reading levels from %s: %w", a.driver.Name(), err)
		}
		a.mu.Lock()
		a.levels.Set(r.LevelA, r.LevelB)
		a.seeded = true
		a.mu.Unlock()
	}

	a.mu.Lock()
	a.connected = true
	l := a.levels
	a.mu.Unlock()

	a.logger.Info("device connected",
		"backend", a.driver.Name(),
		"max_a", l.MaxA, "max_b", l.MaxB,
	)
	a.cues.Play(CueConnected)
	return nil
}

// Reconnect closes the driver and retries Connect until it succeeds or ctx
// ends. The delay between attempts grows by half each time up to the
// configured cap. The connection problem cue plays on the first failure and
// every NotifyEvery failures after that.
//
// If the host held override before the link dropped, it is taken again
// before Reconnect returns. A failure there counts as a failed attempt.
func (a *Adapter) Reconnect(ctx context.Context) error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()

	backoff := a.cfg.Reconnect.InitialDelay
	if backoff <= 0 {
		backoff = defaultReconnectInitial
	}
	maxBackoff := a.cfg.Reconnect.MaxDelay
	if maxBackoff <= 0 {
		maxBackoff = defaultReconnectMax
	}
	every := a.cfg.Reconnect.NotifyEvery
	if every <= 0 {
		every = defaultNotifyEvery
	}
	problem := &rate.Sometimes{Every: every}

	for attempt := 1; ; attempt++ {
		_ = a.driver.Close()

		err := a.Connect(ctx)
		if err == nil {
			err = a.restoreReservation(ctx)
		}
		if err == nil {
			a.metrics.DeviceReconnected(a.driver.Name())
			a.logger.Info("device reconnected", "backend", a.driver.Name(), "attempts", attempt)
			return nil
		}

		a.logger.Error("device reconnect failed",
			"backend", a.driver.Name(),
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
		problem.Do(func() { a.cues.Play(CueConnectionProblem) })

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * 1.5)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// restoreReservation re-takes host override on a fresh link. The reading a
// backend returns is ignored so tuned levels survive.
func (a *Adapter) restoreReservation(ctx context.Context) error {
	a.mu.Lock()
	reserved := a.reserved
	a.mu.Unlock()
	if !reserved {
		return nil
	}
	if _, err := a.driver.Reserve(ctx); err != nil {
		_ = a.driver.Close()
		return fmt.Errorf("reserving %s after reconnect: %w", a.driver.Name(), err)
	}
	a.logger.Info("device reserved after reconnect", "backend", a.driver.Name())
	return nil
}

// Close releases the driver.
func (a *Adapter) Close() error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	return a.driver.Close()
}

// Apply executes one command against the device.
//
// Returns:
//   - error: wraps ErrInvalidCommand for rejected values; any other error is
//     a driver I/O failure
func (a *Adapter) Apply(ctx context.Context, cmd command.Command) error {
	switch cmd.Kind {
	case command.KindReserve:
		r, err := a.driver.Reserve(ctx)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.reserved = true
		if r != nil {
			a.levels.Set(r.LevelA, r.LevelB)
		}
		a.mu.Unlock()
		return nil

	case command.KindRelease:
		if err := a.driver.Release(ctx); err != nil {
			return err
		}
		a.mu.Lock()
		a.reserved = false
		a.mu.Unlock()
		return nil

	case command.KindOff:
		return a.write(ctx, 0, 0)

	case command.KindOnLow:
		l := a.Levels()
		return a.write(ctx, l.LowA, l.LowB)

	case command.KindOn, command.KindOnNorm:
		l := a.Levels()
		return a.write(ctx, l.NormA, l.NormB)

	case command.KindOnMax:
		l := a.Levels()
		return a.write(ctx, l.MaxA, l.MaxB)

	case command.KindOnMaxPlus:
		l := a.Levels()
		return a.write(ctx, l.MaxPlusA, l.MaxPlusB)

	case command.KindOnMaxA:
		return a.write(ctx, a.Levels().MaxA, 0)

	case command.KindOnMaxB:
		return a.write(ctx, 0, a.Levels().MaxB)

	case command.KindAdjust:
		return a.adjust(ctx, cmd)

	case command.KindSetMinimum:
		a.mu.Lock()
		a.levels.SetMinimum(cmd.Zero)
		minA, minB := a.levels.MinA, a.levels.MinB
		a.mu.Unlock()
		a.logger.Info("minimum levels set", "min_a", minA, "min_b", minB)
		return nil

	case command.KindSetLevelsFromDevice:
		r, err := a.driver.ReadLevels(ctx)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.levels.Set(r.LevelA, r.LevelB)
		l := a.levels
		a.mu.Unlock()
		a.logger.Info("levels set from device", "max_a", l.MaxA, "max_b", l.MaxB)
		return nil

	case command.KindSetMA:
		if low, high := a.driver.MARange(); cmd.Value < low || cmd.Value > high {
			return fmt.Errorf("%w: MA %d outside %d..%d", ErrInvalidCommand, cmd.Value, low, high)
		}
		return a.driver.SetMA(ctx, cmd.Value)

	case command.KindSetMode:
		if _, ok := Modes[cmd.Mode]; !ok {
			return fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, cmd.Mode)
		}
		return a.driver.SetMode(ctx, cmd.Mode)

	case command.KindSetLevelA:
		if maxA := a.Levels().MaxA; cmd.Value < 0 || cmd.Value > maxA {
			return fmt.Errorf("%w: A level %d outside 0..%d", ErrInvalidCommand, cmd.Value, maxA)
		}
		return a.driver.SetLevelA(ctx, cmd.Value)

	case command.KindSetLevelB:
		if maxB := a.Levels().MaxB; cmd.Value < 0 || cmd.Value > maxB {
			return fmt.Errorf("%w: B level %d outside 0..%d", ErrInvalidCommand, cmd.Value, maxB)
		}
		return a.driver.SetLevelB(ctx, cmd.Value)

	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, cmd.Kind)
	}
}

func (a *Adapter) adjust(ctx context.Context, cmd command.Command) error {
	a.mu.Lock()
	changed := a.levels.Adjust(cmd.DeltaA, cmd.DeltaB)
	l := a.levels
	a.mu.Unlock()

	if !changed {
		a.logger.Info("levels unchanged", "max_a", l.MaxA, "max_b", l.MaxB)
		a.cues.Play(CueSorry)
		return nil
	}
	a.logger.Info("levels adjusted",
		"max_a", l.MaxA, "norm_a", l.NormA, "low_a", l.LowA,
		"max_b", l.MaxB, "norm_b", l.NormB, "low_b", l.LowB,
	)

	if !cmd.Activate {
		return nil
	}
	if cmd.DeltaA != 0 {
		if err := a.driver.SetLevelA(ctx, l.MaxA); err != nil {
			return err
		}
	}
	if cmd.DeltaB != 0 {
		if err := a.driver.SetLevelB(ctx, l.MaxB); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) write(ctx context.Context, levelA, levelB int) error {
	if err := a.driver.SetLevelA(ctx, levelA); err != nil {
		return err
	}
	return a.driver.SetLevelB(ctx, levelB)
}
