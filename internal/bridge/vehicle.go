package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

// Telemetry receives vehicle readings. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteVehicle(deviceID string, odometer, batteryPercent float64, at time.Time)
}

// Vehicle is the car driven through its telematics bridge.
type Vehicle struct {
	*endpoint

	telemetry Telemetry

	mu       sync.RWMutex
	odometer json.RawMessage
	evStatus json.RawMessage
}

var _ device.Vehicle = (*Vehicle)(nil)

// NewVehicle creates the vehicle. telemetry may be nil.
func NewVehicle(opts Options, telemetry Telemetry) (*Vehicle, error) {
	e, err := newEndpoint(device.KindVehicle, opts)
	if err != nil {
		return nil, err
	}
	v := &Vehicle{endpoint: e, telemetry: telemetry}
	e.beforeStatus = v.applyReadings
	return v, nil
}

// Attach subscribes to the vehicle's state reports.
func (v *Vehicle) Attach() error { return v.start() }

// Detach unsubscribes from state reports.
func (v *Vehicle) Detach() error { return v.stop() }

func (v *Vehicle) Name() string { return v.name }

func (v *Vehicle) Start(ctx context.Context) (device.Ack, error) {
	return v.send(ctx, device.CommandStart, device.SourceFrom(ctx))
}

func (v *Vehicle) Stop(ctx context.Context) (device.Ack, error) {
	return v.send(ctx, device.CommandStop, device.SourceFrom(ctx))
}

func (v *Vehicle) Lock(ctx context.Context) (device.Ack, error) {
	return v.send(ctx, device.CommandLock, device.SourceFrom(ctx))
}

func (v *Vehicle) Unlock(ctx context.Context) (device.Ack, error) {
	return v.send(ctx, device.CommandUnlock, device.SourceFrom(ctx))
}

func (v *Vehicle) Resync(ctx context.Context) error { return v.resync(ctx) }

func (v *Vehicle) Status() json.RawMessage { return v.tracker.Status() }

func (v *Vehicle) Odometer() json.RawMessage {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return clone(v.odometer)
}

func (v *Vehicle) EVStatus() json.RawMessage {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return clone(v.evStatus)
}

func (v *Vehicle) State() device.DeviceState { return v.tracker.Snapshot() }

// applyReadings keeps the last non-null odometer and EV status.
func (v *Vehicle) applyReadings(msg StateMessage) {
	v.mu.Lock()
	if !isNull(msg.Odometer) {
		v.odometer = clone(msg.Odometer)
	}
	if !isNull(msg.EVStatus) {
		v.evStatus = clone(msg.EVStatus)
	}
	odometer := v.odometer
	evStatus := v.evStatus
	v.mu.Unlock()

	if v.telemetry == nil || isNull(odometer) {
		return
	}
	km, ok := odometerValue(odometer)
	if !ok {
		return
	}
	at := msg.Timestamp
	if at.IsZero() {
		at = v.now()
	}
	v.telemetry.WriteVehicle(v.name, km, batteryPercent(evStatus), at)
}

// odometerValue accepts either a bare number or {"value": n, "unit": ...}.
func odometerValue(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var obj struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != nil {
		return *obj.Value, true
	}
	return 0, false
}

// batteryPercent reads batteryStatus from an EV status report, or -1.
func batteryPercent(raw json.RawMessage) float64 {
	if isNull(raw) {
		return -1
	}
	var ev struct {
		BatteryStatus *float64 `json:"batteryStatus"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil || ev.BatteryStatus == nil {
		return -1
	}
	return *ev.BatteryStatus
}

func clone(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
