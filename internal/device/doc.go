// Package device defines the household devices FluxHaus Core commands and
// the state it keeps about them.
//
//	┌───────────────┐  TurnOn/Lock/...  ┌──────────────────┐   MQTT   ┌────────┐
//	│  command pkg  │──────────────────▶│  Robot / Vehicle │◀────────▶│ bridge │
//	│  view pkg     │◀── CachedStatus ──│  (bridge pkg)    │          └────────┘
//	└───────────────┘                   └──────────────────┘
//	                                             │ status reports
//	                                             ▼
//	                                    device_state_history
//
// Commands are non-confirming. TurnOn, Lock and friends hand the command to
// the device's bridge and return an Ack that only says whether the hand-off
// succeeded. The device's real state is learned later, either from the
// bridge's own status reports or by calling Resync, and is then visible
// through CachedStatus, Status, Odometer and EVStatus.
//
// Each implementation owns its DeviceState. Other packages only read it.
package device
