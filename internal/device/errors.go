package device

import "errors"

var (
	// ErrNotConnected is returned when a device's bridge cannot be reached.
	ErrNotConnected = errors.New("device: bridge not connected")

	// ErrResyncTimeout is returned when a device does not report fresh
	// status before the resync deadline.
	ErrResyncTimeout = errors.New("device: resync timed out")

	// ErrUnknownDevice is returned when a device name is not registered.
	ErrUnknownDevice = errors.New("device: unknown device")
)
