package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

// ET232 register addresses.
const (
	regLevelB     = 0x88
	regMA         = 0x89
	regLevelA     = 0x8c
	regMode       = 0xa3
	regOverride   = 0xa4
	regModeTimer  = 0xd3
	overrideAll   = 0x13 // MA, channel A and channel B under host control
	overrideNone  = 0x00
	et232MAHigh   = 255
	et232BaudRate = 19200
)

// SerialOpener opens the serial port. Tests substitute an in-memory port.
type SerialOpener func(port string, cfg config.SerialConfig) (io.ReadWriteCloser, error)

// OpenSerial opens a real serial port in 8N1 mode.
func OpenSerial(port string, cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = et232BaudRate
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			p.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("setting read timeout: %w", err)
		}
	}
	return p, nil
}

// ET232 drives an ErosTek ET232 over its serial link.
//
// The link carries ASCII register frames terminated by CR:
//
//	read:   'H' AA CC          reply: VV CC
//	write:  'I' AA VV.. CC     reply: VV(echo of first data byte) CC
//
// AA is the register address, VV a data byte, CC the low byte of the sum of
// the preceding frame characters, all as two upper-case hex digits.
//
// Thread Safety:
//   - Methods are serialised by an internal mutex.
type ET232 struct {
	cfg  config.SerialConfig
	open SerialOpener

	mu   sync.Mutex
	port io.ReadWriteCloser
	rd   *bufio.Reader
}

// NewET232 creates a serial driver. A nil opener uses OpenSerial.
func NewET232(cfg config.SerialConfig, open SerialOpener) *ET232 {
	if open == nil {
		open = OpenSerial
	}
	return &ET232{cfg: cfg, open: open}
}

// Name implements Driver.
func (d *ET232) Name() string { return "et232" }

// MARange implements Driver.
func (d *ET232) MARange() (low, high int) { return 0, et232MAHigh }

// Connect opens the port, checks the box answers and clears any override
// left from a previous run.
func (d *ET232) Connect(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	port, err := d.open(d.cfg.Port, d.cfg)
	if err != nil {
		return err
	}
	d.port = port
	d.rd = bufio.NewReader(port)

	if _, err := d.readReg(regMode); err != nil {
		d.closeLocked()
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := d.writeReg(regOverride, overrideNone); err != nil {
		d.closeLocked()
		return err
	}
	return nil
}

// Close implements Driver.
func (d *ET232) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *ET232) closeLocked() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.rd = nil
	return err
}

// Reserve enables host overrides for MA and both channels.
func (d *ET232) Reserve(_ context.Context) (*Reading, error) {
	return nil, d.write(regOverride, overrideAll)
}

// Release disables host overrides.
func (d *ET232) Release(_ context.Context) error {
	return d.write(regOverride, overrideNone)
}

// SetLevelA implements Driver.
func (d *ET232) SetLevelA(_ context.Context, v int) error { return d.write(regLevelA, v) }

// SetLevelB implements Driver.
func (d *ET232) SetLevelB(_ context.Context, v int) error { return d.write(regLevelB, v) }

// SetMA implements Driver.
func (d *ET232) SetMA(_ context.Context, v int) error { return d.write(regMA, v) }

// SetMode writes the mode register and restarts the box's mode timer so it
// does not shut down on its own.
func (d *ET232) SetMode(_ context.Context, mode string) error {
	code, ok := Modes[mode]
	if !ok {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, mode)
	}
	if err := d.write(regMode, code); err != nil {
		return err
	}
	return d.write(regModeTimer, 0)
}

// ReadLevels implements Driver.
func (d *ET232) ReadLevels(_ context.Context) (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.readReg(regLevelA)
	if err != nil {
		return Reading{}, err
	}
	b, err := d.readReg(regLevelB)
	if err != nil {
		return Reading{}, err
	}
	return Reading{LevelA: a, LevelB: b}, nil
}

func (d *ET232) write(reg, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeReg(reg, value)
}

func (d *ET232) writeReg(reg, value int) error {
	if d.port == nil {
		return ErrNotConnected
	}
	if value < 0 || value > 0xff {
		return fmt.Errorf("%w: register 0x%02x value %d outside 0..255", ErrInvalidCommand, reg, value)
	}
	body := fmt.Sprintf("I%02X%02X", reg, value)
	if _, err := d.exchange(body); err != nil {
		return fmt.Errorf("writing register 0x%02x: %w", reg, err)
	}
	return nil
}

func (d *ET232) readReg(reg int) (int, error) {
	if d.port == nil {
		return 0, ErrNotConnected
	}
	body := fmt.Sprintf("H%02X", reg)
	v, err := d.exchange(body)
	if err != nil {
		return 0, fmt.Errorf("reading register 0x%02x: %w", reg, err)
	}
	return v, nil
}

// exchange sends one frame and returns the data byte of the reply.
func (d *ET232) exchange(body string) (int, error) {
	if _, err := io.WriteString(d.port, frame(body)); err != nil {
		return 0, err
	}
	line, err := d.rd.ReadString('\r')
	if err != nil {
		return 0, err
	}
	return parseReply(strings.TrimSuffix(line, "\r"))
}

func frame(body string) string {
	return body + checksum(body) + "\r"
}

func checksum(s string) string {
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += int(s[i])
	}
	return fmt.Sprintf("%02X", sum&0xff)
}

func parseReply(reply string) (int, error) {
	if len(reply) != 4 {
		return 0, fmt.Errorf("%w: reply %q", ErrProtocol, reply)
	}
	if checksum(reply[:2]) != reply[2:] {
		return 0, fmt.Errorf("%w: bad checksum in %q", ErrProtocol, reply)
	}
	v, err := strconv.ParseUint(reply[:2], 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return int(v), nil
}

var _ Driver = (*ET232)(nil)
