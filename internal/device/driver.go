package device

import "context"

// Modes is the device mode vocabulary. set_mode commands naming anything
// else are rejected. Values are the ET232 mode register codes.
var Modes = map[string]int{
	"throb":       0,
	"climb":       1,
	"audio-loud":  2,
	"audio-waves": 3,
	"combo":       4,
	"hi-freq":     5,
	"audio-soft":  6,
	"user":        7,
	"thump":       8,
	"ramp":        9,
	"intense":     10,
	"waves":       11,
	"thrust":      12,
	"stroke":      13,
	"random":      14,
	"off":         15,
}

// Reading is a level report from the device.
type Reading struct {
	LevelA int
	LevelB int
}

// Driver is the transport for one device backend.
//
// Implementations translate level/mode/MA writes into their wire protocol.
// Every error returned by a Driver is treated as an I/O failure.
type Driver interface {
	// Name identifies the backend in logs ("et232", "dweeb").
	Name() string

	// Connect opens the transport and performs any handshake.
	Connect(ctx context.Context) error

	// Close releases the transport. Safe to call when not connected.
	Close() error

	// Reserve takes control of the outputs. Drivers whose handshake reports
	// the current levels return them; others return nil.
	Reserve(ctx context.Context) (*Reading, error)

	// Release hands control back to the front panel.
	Release(ctx context.Context) error

	SetLevelA(ctx context.Context, v int) error
	SetLevelB(ctx context.Context, v int) error

	// SetMode selects a mode by name. The name is already validated.
	SetMode(ctx context.Context, mode string) error

	SetMA(ctx context.Context, v int) error

	// ReadLevels reports the levels currently set on the device.
	ReadLevels(ctx context.Context) (Reading, error)

	// MARange returns the inclusive bounds accepted by SetMA.
	MARange() (low, high int)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// CuePlayer plays a named audio cue without blocking.
type CuePlayer interface {
	Play(name string)
}

// Metrics receives consumer loop counters.
type Metrics interface {
	CommandApplied(kind string)
	CommandRejected(kind string)
	DeviceReconnected(backend string)
	CommandsDrained(n int)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopCues struct{}

func (noopCues) Play(string) {}

type noopMetrics struct{}

func (noopMetrics) CommandApplied(string)    {}
func (noopMetrics) CommandRejected(string)   {}
func (noopMetrics) DeviceReconnected(string) {}
func (noopMetrics) CommandsDrained(int)      {}
