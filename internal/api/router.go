package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(noCacheMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed")
	})

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requirePermission(auth.PermDashboardView)).Get("/", s.handleDashboard)
		r.Post("/auth/token", s.handleIssueToken)

		r.Group(func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermDeviceOperate))

			r.Get("/turnOnMopbot", s.handleRobot(device.NameMopbot, device.CommandOn))
			r.Get("/turnOffMopbot", s.handleRobot(device.NameMopbot, device.CommandOff))
			r.Get("/turnOnBroombot", s.handleRobot(device.NameBroombot, device.CommandOn))
			r.Get("/turnOffBroombot", s.handleRobot(device.NameBroombot, device.CommandOff))

			r.Get("/turnOnDeepClean", s.handleStartDeepClean)
			r.Get("/turnOffDeepClean", s.handleStopDeepClean)

			r.Get("/startCar", s.handleVehicle(device.CommandStart))
			r.Get("/stopCar", s.handleVehicle(device.CommandStop))
			r.Get("/lockCar", s.handleVehicle(device.CommandLock))
			r.Get("/unlockCar", s.handleVehicle(device.CommandUnlock))
			r.Get("/resyncCar", s.handleResyncVehicle)
		})

		// Booking checks its own permission so the rejection keeps the
		// body dashboard clients expect.
		r.Post("/scheduleRhizome", s.handleScheduleRhizome)

		r.With(s.requirePermission(auth.PermCommandLogRead)).Get("/commands", s.handleListCommands)
		r.With(s.requirePermission(auth.PermEventsStream)).Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
