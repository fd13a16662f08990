package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is switched off.
	// Callers carry on with a nil *Client, which drops every write.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrNotConnected     = errors.New("influxdb: not connected")
)
