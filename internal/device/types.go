package device

import (
	"context"
	"encoding/json"
	"time"
)

// Kind groups devices by the command set they accept.
type Kind string

const (
	KindRobot   Kind = "robot"
	KindVehicle Kind = "vehicle"
)

// Command is the last command issued to a device.
type Command string

const (
	CommandNone   Command = "none"
	CommandOn     Command = "on"
	CommandOff    Command = "off"
	CommandStart  Command = "start"
	CommandStop   Command = "stop"
	CommandLock   Command = "lock"
	CommandUnlock Command = "unlock"
)

// DeviceState is what Core knows about a device. CachedStatus is the
// bridge's last report, kept as opaque JSON and null until the first one.
type DeviceState struct {
	CachedStatus  json.RawMessage `json:"cachedStatus"`
	LastCommand   Command         `json:"lastCommand"`
	LastCommandAt *time.Time      `json:"lastCommandAt"`
	UpdatedAt     *time.Time      `json:"updatedAt"`
}

// Ack is the best-effort acknowledgement of a command. Accepted means the
// command was handed to the device's bridge, not that the device acted.
type Ack struct {
	Device   string    `json:"device"`
	Command  Command   `json:"command"`
	Accepted bool      `json:"accepted"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Robot is a cleaning robot that can be switched on and off.
type Robot interface {
	Name() string
	TurnOn(ctx context.Context) (Ack, error)
	TurnOff(ctx context.Context) (Ack, error)

	// Resync asks the robot for fresh status and waits for it.
	Resync(ctx context.Context) error

	// CachedStatus returns the last observed status without blocking.
	CachedStatus() json.RawMessage

	State() DeviceState
}

// Vehicle is the household car.
type Vehicle interface {
	Name() string
	Start(ctx context.Context) (Ack, error)
	Stop(ctx context.Context) (Ack, error)
	Lock(ctx context.Context) (Ack, error)
	Unlock(ctx context.Context) (Ack, error)

	// Resync asks the telematics service for fresh status and waits for it.
	Resync(ctx context.Context) error

	// Status, Odometer and EVStatus return the last observed values,
	// or nil if none has been observed.
	Status() json.RawMessage
	Odometer() json.RawMessage
	EVStatus() json.RawMessage

	State() DeviceState
}
