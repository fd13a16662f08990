package bridge

import (
	"context"
	"encoding/json"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

// Robot is a cleaning robot driven through its MQTT bridge.
type Robot struct {
	*endpoint
}

var _ device.Robot = (*Robot)(nil)

// NewRobot creates a robot. Call Attach before use.
func NewRobot(opts Options) (*Robot, error) {
	e, err := newEndpoint(device.KindRobot, opts)
	if err != nil {
		return nil, err
	}
	return &Robot{endpoint: e}, nil
}

// Attach subscribes to the robot's state reports.
func (r *Robot) Attach() error { return r.start() }

// Detach unsubscribes from state reports.
func (r *Robot) Detach() error { return r.stop() }

func (r *Robot) Name() string { return r.name }

func (r *Robot) TurnOn(ctx context.Context) (device.Ack, error) {
	return r.send(ctx, device.CommandOn, device.SourceFrom(ctx))
}

func (r *Robot) TurnOff(ctx context.Context) (device.Ack, error) {
	return r.send(ctx, device.CommandOff, device.SourceFrom(ctx))
}

func (r *Robot) Resync(ctx context.Context) error { return r.resync(ctx) }

func (r *Robot) CachedStatus() json.RawMessage { return r.tracker.Status() }

func (r *Robot) State() device.DeviceState { return r.tracker.Snapshot() }
