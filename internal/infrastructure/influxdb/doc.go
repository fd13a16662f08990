// Package influxdb writes optional FluxHaus telemetry to InfluxDB v2.
//
// When enabled it records one point per upstream snapshot fetch, one per
// command lifecycle transition, and the vehicle odometer and charge level
// whenever a fresh vehicle status arrives. Writes are non-blocking and
// batched by influxdb-client-go; asynchronous write failures are delivered
// to the callback set with SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteFetch("rhizome", true, 240*time.Millisecond)
package influxdb
