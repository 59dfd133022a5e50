package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

const (
	dweebMALow  = -50
	dweebMAHigh = 50

	defaultDweebDeviceName = "ET 232"
)

// dweebModes maps mode names to the dweeb server's mode numbering,
// which differs from the ET232 register codes.
var dweebModes = map[string]int{
	"off": 0, "waves": 1, "intense": 2, "random": 3,
	"audio-soft": 4, "audio-loud": 5, "audio-waves": 6, "user": 7,
	"hi-freq": 8, "climb": 9, "throb": 10, "combo": 11,
	"thrust": 12, "thump": 13, "ramp": 14, "stroke": 15,
}

// DweebState is the device state reported by the dweeb server.
type DweebState struct {
	Devix  int    `json:"devix"`
	Avail  string `json:"avail,omitempty"`
	Mode   int    `json:"mode"`
	Status string `json:"status,omitempty"`
	LevelA int    `json:"level_a"`
	LevelB int    `json:"level_b"`
	MA     int    `json:"ma"`
	Batt   int    `json:"batt,omitempty"`
}

// DweebDevice is one entry of the dweeb device listing.
type DweebDevice struct {
	Name  string     `json:"name"`
	Devix int        `json:"devix"`
	State DweebState `json:"state"`
}

type dweebRequest struct {
	Event string `json:"event"`
	Value *int   `json:"value,omitempty"`
	SeqNr int    `json:"seqNr"`
	Devix int    `json:"devix"`
}

// Dweeb drives a device attached to a dweeb server. Discovery uses the
// HTTP device listing; commands go over a WebSocket as JSON events.
//
// Thread Safety:
//   - Methods are serialised by an internal mutex.
type Dweeb struct {
	cfg    config.DweebConfig
	client *http.Client
	dialer *websocket.Dialer

	mu    sync.Mutex
	conn  *websocket.Conn
	devix int
	seqNr int
}

// NewDweeb creates a dweeb driver. A nil client uses http.DefaultClient.
func NewDweeb(cfg config.DweebConfig, client *http.Client) *Dweeb {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = defaultDweebDeviceName
	}
	return &Dweeb{
		cfg:    cfg,
		client: client,
		dialer: websocket.DefaultDialer,
		seqNr:  1,
	}
}

// Name implements Driver.
func (d *Dweeb) Name() string { return "dweeb" }

// MARange implements Driver.
func (d *Dweeb) MARange() (low, high int) { return dweebMALow, dweebMAHigh }

// Connect finds the configured device in the listing and opens the
// command socket.
func (d *Dweeb) Connect(ctx context.Context) error {
	dev, err := d.findDevice(ctx)
	if err != nil {
		return err
	}

	conn, resp, err := d.dialer.DialContext(ctx, d.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", d.cfg.WSURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	d.mu.Lock()
	d.conn = conn
	d.devix = dev.Devix
	d.mu.Unlock()
	return nil
}

// Close implements Driver.
func (d *Dweeb) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// Reserve claims the device and returns the state the server replies with.
func (d *Dweeb) Reserve(ctx context.Context) (*Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sendLocked(ctx, "reserve", nil); err != nil {
		return nil, err
	}
	if d.conn == nil {
		return nil, ErrNotConnected
	}
	var state DweebState
	if err := d.conn.ReadJSON(&state); err != nil {
		return nil, fmt.Errorf("reading reserve reply: %w", err)
	}
	return &Reading{LevelA: state.LevelA, LevelB: state.LevelB}, nil
}

// Release is a no-op; the server frees the device when the socket closes.
func (d *Dweeb) Release(_ context.Context) error { return nil }

// SetLevelA implements Driver.
func (d *Dweeb) SetLevelA(ctx context.Context, v int) error { return d.send(ctx, "set_level_a", &v) }

// SetLevelB implements Driver.
func (d *Dweeb) SetLevelB(ctx context.Context, v int) error { return d.send(ctx, "set_level_b", &v) }

// SetMA implements Driver.
func (d *Dweeb) SetMA(ctx context.Context, v int) error { return d.send(ctx, "set_ma", &v) }

// SetMode implements Driver.
func (d *Dweeb) SetMode(ctx context.Context, mode string) error {
	code, ok := dweebModes[mode]
	if !ok {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, mode)
	}
	return d.send(ctx, "set_mode", &code)
}

// ReadLevels re-reads the device listing.
func (d *Dweeb) ReadLevels(ctx context.Context) (Reading, error) {
	dev, err := d.findDevice(ctx)
	if err != nil {
		return Reading{}, err
	}
	return Reading{LevelA: dev.State.LevelA, LevelB: dev.State.LevelB}, nil
}

func (d *Dweeb) findDevice(ctx context.Context) (DweebDevice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.URL, nil)
	if err != nil {
		return DweebDevice{}, fmt.Errorf("building device listing request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return DweebDevice{}, fmt.Errorf("fetching device listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DweebDevice{}, fmt.Errorf("fetching device listing: status %d", resp.StatusCode)
	}

	var devices []DweebDevice
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		return DweebDevice{}, fmt.Errorf("%w: decoding device listing: %v", ErrProtocol, err)
	}
	for _, dev := range devices {
		if dev.Name == d.cfg.DeviceName {
			return dev, nil
		}
	}
	return DweebDevice{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, d.cfg.DeviceName)
}

func (d *Dweeb) send(ctx context.Context, event string, value *int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendLocked(ctx, event, value)
}

// sendLocked writes one event and then waits the configured spacing; the
// server drops events that arrive too close together.
func (d *Dweeb) sendLocked(ctx context.Context, event string, value *int) error {
	if d.conn == nil {
		return ErrNotConnected
	}
	req := dweebRequest{
		Event: event,
		Value: value,
		SeqNr: d.seqNr,
		Devix: d.devix,
	}
	d.seqNr++

	if deadline, ok := ctx.Deadline(); ok {
		_ = d.conn.SetWriteDeadline(deadline)
	}
	if err := d.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("sending %s: %w", event, err)
	}
	return pause(ctx, d.cfg.CommandSpacing)
}

// pause waits d or until ctx ends.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Driver = (*Dweeb)(nil)
