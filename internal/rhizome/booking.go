package rhizome

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Template placeholders, replaced in this order. Each is replaced once.
const (
	PlaceholderCreatedAt   = "CREATED_AT"
	PlaceholderDate        = "DATE"
	PlaceholderPickupDate  = "PICKUP_DATE"
	PlaceholderDropoffTime = "DROPOFF_TIME"
	PlaceholderPickupTime  = "PICKUP_TIME"
)

// BookingRequest is the immutable input to one booking submission.
type BookingRequest struct {
	CreatedAt        int64  // epoch seconds at build time
	DropoffEpoch     int64  // epoch seconds
	PickupEpoch      int64  // epoch seconds
	DropoffLocalTime string // "HH:MM" in the household timezone
	PickupLocalTime  string // "HH:MM" in the household timezone
}

// NewBookingRequest builds a request for the given window. Wall-clock times
// are rendered in loc.
func NewBookingRequest(dropoff, pickup, now time.Time, loc *time.Location) BookingRequest {
	if loc == nil {
		loc = time.Local
	}
	return BookingRequest{
		CreatedAt:        now.Unix(),
		DropoffEpoch:     dropoff.Unix(),
		PickupEpoch:      pickup.Unix(),
		DropoffLocalTime: dropoff.In(loc).Format("15:04"),
		PickupLocalTime:  pickup.In(loc).Format("15:04"),
	}
}

// Render substitutes the request into template. Epoch values are decimal
// seconds; local times are percent-encoded, so "09:00" becomes "09%3A00".
//
// Substitution is sequential and textual: each placeholder replaces its
// first occurrence in the text produced by the previous step.
func (r BookingRequest) Render(template string) string {
	out := template
	for _, sub := range []struct{ placeholder, value string }{
		{PlaceholderCreatedAt, strconv.FormatInt(r.CreatedAt, 10)},
		{PlaceholderDate, strconv.FormatInt(r.DropoffEpoch, 10)},
		{PlaceholderPickupDate, strconv.FormatInt(r.PickupEpoch, 10)},
		{PlaceholderDropoffTime, url.QueryEscape(r.DropoffLocalTime)},
		{PlaceholderPickupTime, url.QueryEscape(r.PickupLocalTime)},
	} {
		out = strings.Replace(out, sub.placeholder, sub.value, 1)
	}
	return out
}
