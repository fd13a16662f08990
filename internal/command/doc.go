// Package command dispatches device commands and reconciles their effect.
//
// Device commands do not confirm. The Dispatcher hands each one to the
// device, answers the caller with the device's acknowledgement straight
// away, and schedules a resync once the device has had time to settle.
// The resync is scheduled even when the ack was negative, since a command
// that timed out may still have been applied:
//
//	dispatched ──schedule──▶ pending_resync ──reconcile──▶ reconciled
//	     │                        │
//	     └───fail (closed)────────┴───fail (resync error)──▶ failed
//
// Every transition is written to the command log and announced to the
// registered notifiers. Deep clean chains the two robots: the broombot
// starts at once and the mopbot follows after a fixed delay unless the
// deep clean is stopped first.
package command
