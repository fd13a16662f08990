package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementFetch   = "snapshot_fetch"
	MeasurementCommand = "device_command"
	MeasurementVehicle = "vehicle"
)

// WriteFetch records the outcome of one upstream snapshot fetch.
func (c *Client) WriteFetch(key string, ok bool, took time.Duration) {
	c.write(MeasurementFetch,
		map[string]string{"key": key},
		map[string]any{"ok": ok, "duration_ms": took.Milliseconds()},
		time.Now())
}

// WriteCommand records a command execution reaching a lifecycle state.
func (c *Client) WriteCommand(device, command, state string, accepted bool) {
	c.write(MeasurementCommand,
		map[string]string{"device": device, "command": command, "state": state},
		map[string]any{"accepted": accepted},
		time.Now())
}

// WriteVehicle records vehicle telemetry. A negative batteryPercent means
// the charge level was not reported and is left out of the point.
func (c *Client) WriteVehicle(deviceID string, odometer, batteryPercent float64, at time.Time) {
	fields := map[string]any{"odometer": odometer}
	if batteryPercent >= 0 {
		fields["battery_percent"] = batteryPercent
	}
	c.write(MeasurementVehicle, map[string]string{"device_id": deviceID}, fields, at)
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if c.site != "" {
		tags["site"] = c.site
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
