// Package api implements the HTTP dashboard API and live event stream for
// FluxHaus Core.
//
// Routes:
//
//	GET  /                  role-filtered dashboard
//	GET  /turnOn|turnOff{Mopbot,Broombot,DeepClean}
//	GET  /{start,stop,lock,unlock,resync}Car
//	POST /scheduleRhizome   {dropoff, pickup}
//	POST /auth/token        exchange credentials for a bearer token
//	GET  /commands          recent command log (admin)
//	GET  /ws                live snapshot and command events
//	GET  /health, /metrics  unauthenticated
//
// Every route except health and metrics requires HTTP Basic or Bearer
// credentials. Command routes answer 200 as soon as the command is sent;
// a failed delivery shows up as accepted=false in the body, and the
// device's real state is only known after the scheduled resync.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
