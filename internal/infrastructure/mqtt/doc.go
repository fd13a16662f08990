// Package mqtt provides the MQTT client FluxHaus Core uses to reach its
// device bridges.
//
// FluxHaus never talks to the robot vacuums or the car directly. Each device
// family is served by a bridge process that owns the vendor protocol and
// exchanges JSON with Core over a Mosquitto broker:
//
//	FluxHaus Core ↔ MQTT Broker ↔ roomba bridge / bluelink bridge
//
// The client handles auto-reconnect, restores subscriptions after a
// reconnect, and announces Core's presence on fluxhaus/system/status with a
// retained message and a Last Will.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("state %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
