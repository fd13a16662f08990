package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/rhizome"
)

// bookingRequest is the body of POST /scheduleRhizome.
type bookingRequest struct {
	Dropoff string `json:"dropoff"`
	Pickup  string `json:"pickup"`
}

// bookingTimeLayouts are tried in order. Layouts without a zone are read in
// the household timezone.
var bookingTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// handleScheduleRhizome submits a daycare booking. The submission runs in
// the background; the caller is told it was accepted, not that the daycare
// confirmed it.
func (s *Server) handleScheduleRhizome(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := auth.Authorize(id, auth.PermBookingSubmit); err != nil {
		s.logger.Debug("booking rejected", "username", id.Username, "error", err)
		writeUnauthorized(w, s.realm, msgNotAuthorized)
		return
	}

	var body bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dropoff, err := s.parseBookingTime("dropoff", body.Dropoff)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	pickup, err := s.parseBookingTime("pickup", body.Pickup)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !pickup.After(dropoff) {
		writeBadRequest(w, "pickup must be after dropoff")
		return
	}

	req := rhizome.NewBookingRequest(dropoff, pickup, s.now(), s.loc)
	s.logger.Info("booking requested",
		"username", id.Username,
		"dropoff", req.DropoffLocalTime,
		"pickup", req.PickupLocalTime,
	)

	go func() {
		ctx, cancel := context.WithTimeout(s.base, bookingTimeout)
		defer cancel()
		if err := s.booking.SubmitBooking(ctx, req); err != nil {
			s.logger.Warn("booking submission failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"result": "Ok"})
}

func (s *Server) parseBookingTime(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	for _, layout := range bookingTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s is not an ISO-8601 time", field)
}
