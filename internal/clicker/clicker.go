// Package clicker reads a USB presentation remote through Linux evdev and
// turns key presses into session actions.
//
// The device is read as a stream of input_event records. Only key-down
// events (EV_KEY with value 1) whose code appears in the key map are
// dispatched. Read or open failures close the device and reopen it after
// the configured retry delay, indefinitely.
package clicker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
	"github.com/nerrad567/surprise-core/internal/session"
)

const (
	evKey   = 0x01
	keyDown = 1

	defaultRetryDelay = 5 * time.Second
)

// Layout is the byte layout of a Linux input_event record: a struct timeval
// whose width follows the kernel ABI, then type (u16), code (u16) and value
// (s32) in host byte order.
type Layout struct {
	TimevalSize int
}

// Known input_event layouts.
var (
	// Layout32 is used by 32-bit kernels such as the Raspberry Pi's armv7.
	Layout32 = Layout{TimevalSize: 8}
	// Layout64 is used by 64-bit kernels.
	Layout64 = Layout{TimevalSize: 16}
	// NativeLayout matches the kernel this binary was built for.
	NativeLayout = Layout{TimevalSize: timevalSize}
)

// Size returns the record length in bytes.
func (l Layout) Size() int {
	return l.TimevalSize + 8
}

// Decode parses one record. b must hold at least l.Size() bytes.
func (l Layout) Decode(b []byte) Event {
	o := l.TimevalSize
	return Event{
		Type:  binary.NativeEndian.Uint16(b[o:]),
		Code:  binary.NativeEndian.Uint16(b[o+2:]),
		Value: int32(binary.NativeEndian.Uint32(b[o+4:])), //nolint:gosec // Reinterpreting the kernel's s32
	}
}

// Encode renders e as one record with a zero timestamp.
func (l Layout) Encode(e Event) []byte {
	o := l.TimevalSize
	b := make([]byte, l.Size())
	binary.NativeEndian.PutUint16(b[o:], e.Type)
	binary.NativeEndian.PutUint16(b[o+2:], e.Code)
	binary.NativeEndian.PutUint32(b[o+4:], uint32(e.Value)) //nolint:gosec // Reinterpreting as the kernel's s32
	return b
}

// Event is one decoded input event.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// IsKeyDown reports whether e is a key press.
func (e Event) IsKeyDown() bool {
	return e.Type == evKey && e.Value == keyDown
}

// Dispatcher receives actions. *session.Controller implements it.
type Dispatcher interface {
	Dispatch(a session.Action) session.State
}

// Opener opens the input device.
type Opener func(path string) (io.ReadCloser, error)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Clicker.
type Options struct {
	// Open defaults to os.Open.
	Open Opener

	// Layout defaults to NativeLayout.
	Layout Layout

	Logger Logger
}

// Clicker maps key presses to actions.
type Clicker struct {
	device     string
	keys       map[uint16]session.Action
	retryDelay time.Duration
	dispatch   Dispatcher
	open       Opener
	layout     Layout
	logger     Logger
}

// New validates the key map and creates a Clicker.
func New(cfg config.ClickerConfig, d Dispatcher, opts Options) (*Clicker, error) {
	keys := make(map[uint16]session.Action, len(cfg.Keys))
	for code, name := range cfg.Keys {
		a, err := session.ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("clicker key %d: %w", code, err)
		}
		keys[code] = a
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if opts.Open == nil {
		opts.Open = func(path string) (io.ReadCloser, error) { return os.Open(path) } //nolint:gosec // Device path comes from the service configuration
	}
	if opts.Layout.TimevalSize == 0 {
		opts.Layout = NativeLayout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Clicker{
		device:     cfg.Device,
		keys:       keys,
		retryDelay: cfg.RetryDelay,
		dispatch:   d,
		open:       opts.Open,
		layout:     opts.Layout,
		logger:     opts.Logger,
	}, nil
}

// Run reads the device until ctx is cancelled.
func (c *Clicker) Run(ctx context.Context) error {
	c.logger.Info("clicker handler running", "device", c.device)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error("clicker failure", "device", c.device, "error", err, "retry_in", c.retryDelay.String())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.retryDelay):
		}
	}
}

// session opens the device once and reads it until an error occurs.
func (c *Clicker) session(ctx context.Context) error {
	dev, err := c.open(c.device)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.device, err)
	}

	// Closing the device unblocks the pending read on shutdown.
	stop := context.AfterFunc(ctx, func() { dev.Close() }) //nolint:errcheck // Best effort unblock
	defer func() {
		if stop() {
			dev.Close() //nolint:errcheck // Best effort cleanup
		}
	}()

	c.logger.Info("clicker device opened", "device", c.device)
	return c.readLoop(dev)
}

func (c *Clicker) readLoop(r io.Reader) error {
	buf := make([]byte, c.layout.Size())
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("reading events: %w", io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("reading events: %w", err)
		}
		c.handle(c.layout.Decode(buf))
	}
}

func (c *Clicker) handle(e Event) {
	if !e.IsKeyDown() {
		return
	}
	a, ok := c.keys[e.Code]
	if !ok {
		c.logger.Debug("unmapped clicker key", "code", e.Code)
		return
	}
	state := c.dispatch.Dispatch(a)
	c.logger.Debug("clicker action", "code", e.Code, "action", string(a), "state", string(state))
}
