package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidCommand is returned when a command value is outside the
	// device's accepted range. The command is dropped.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrNotConnected is returned when a driver is used before Connect.
	ErrNotConnected = errors.New("device: not connected")

	// ErrDeviceNotFound is returned when the configured device is missing
	// from the network device listing.
	ErrDeviceNotFound = errors.New("device: device not found")

	// ErrHandshakeFailed is returned when the serial box does not answer
	// the initial register read.
	ErrHandshakeFailed = errors.New("device: handshake failed")

	// ErrProtocol is returned when a device reply cannot be parsed.
	ErrProtocol = errors.New("device: protocol error")
)
