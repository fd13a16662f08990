// Package bridge implements device.Robot and device.Vehicle over MQTT.
//
// The robots and the car are driven by separate bridge processes that own
// the vendor protocols. Core talks to them with three topic families:
//
//	fluxhaus/command/{kind}/{id}   Core → bridge   CommandMessage
//	fluxhaus/request/{kind}/{id}   Core → bridge   RequestMessage (resync)
//	fluxhaus/state/{kind}/{id}     bridge → Core   StateMessage
//
// A command is acknowledged once it is published at QoS 1. The bridge
// reports the device's real state whenever it changes and in response to a
// resync request. Resync blocks until a report echoes its request id in
// request_id; other reports only refresh the cached status.
package bridge
