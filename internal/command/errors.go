package command

import "errors"

var (
	// ErrUnknownAction is returned for a command a device does not accept.
	ErrUnknownAction = errors.New("command: unknown action")

	// ErrUnknownDevice is returned when the target device is not registered.
	ErrUnknownDevice = errors.New("command: unknown device")

	// ErrClosed is returned for commands issued after Close.
	ErrClosed = errors.New("command: dispatcher closed")
)
