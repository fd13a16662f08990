package rhizome

import (
	"testing"
	"time"
)

func TestNewBookingRequest(t *testing.T) {
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	dropoff := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	pickup := time.Date(2026, 10, 19, 17, 30, 0, 0, loc)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	r := NewBookingRequest(dropoff.UTC(), pickup.UTC(), now, loc)

	if r.CreatedAt != now.Unix() {
		t.Errorf("CreatedAt = %d, want %d", r.CreatedAt, now.Unix())
	}
	if r.DropoffEpoch != dropoff.Unix() || r.PickupEpoch != pickup.Unix() {
		t.Errorf("epochs = %d/%d", r.DropoffEpoch, r.PickupEpoch)
	}
	if r.DropoffLocalTime != "09:00" || r.PickupLocalTime != "17:30" {
		t.Errorf("local times = %q/%q, want 09:00/17:30", r.DropoffLocalTime, r.PickupLocalTime)
	}
}

func TestBookingRequest_Render(t *testing.T) {
	r := BookingRequest{
		CreatedAt:        1760000000,
		DropoffEpoch:     1760864400,
		PickupEpoch:      1760895000,
		DropoffLocalTime: "09:00",
		PickupLocalTime:  "17:30",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "all placeholders",
			template: `{"created":CREATED_AT,"date":DATE,"pickup":PICKUP_DATE,"in":"DROPOFF_TIME","out":"PICKUP_TIME"}`,
			want:     `{"created":1760000000,"date":1760864400,"pickup":1760895000,"in":"09%3A00","out":"17%3A30"}`,
		},
		{
			name:     "only first occurrence replaced",
			template: `CREATED_AT CREATED_AT`,
			want:     `1760000000 CREATED_AT`,
		},
		{
			name:     "no placeholders",
			template: `{"static":true}`,
			want:     `{"static":true}`,
		},
		{
			// DATE is substituted before PICKUP_DATE, so when PICKUP_DATE comes
			// first its DATE suffix is consumed.
			name:     "sequential substitution order",
			template: `PICKUP_DATE DATE`,
			want:     `PICKUP_1760864400 1760895000`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Render(tt.template); got != tt.want {
				t.Errorf("Render() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewBookingRequest_NilLocation(t *testing.T) {
	at := time.Date(2026, 1, 1, 8, 15, 0, 0, time.Local)
	r := NewBookingRequest(at, at, at, nil)
	if r.DropoffLocalTime != "08:15" {
		t.Errorf("DropoffLocalTime = %q, want 08:15", r.DropoffLocalTime)
	}
}
