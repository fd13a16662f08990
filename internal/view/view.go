// Package view composes the dashboard response for a caller's role.
package view

import (
	"encoding/json"

	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/device"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
)

// AdminView is the full dashboard. Missing data is encoded as null; no key
// is ever omitted.
type AdminView struct {
	MieleClientID    string             `json:"mieleClientId"`
	MieleSecretID    string             `json:"mieleSecretId"`
	MieleAppliances  []string           `json:"mieleAppliances"`
	BoschClientID    string             `json:"boschClientId"`
	BoschSecretID    string             `json:"boschSecretId"`
	BoschAppliance   string             `json:"boschAppliance"`
	FavouriteHomeKit []string           `json:"favouriteHomeKit"`
	Broombot         json.RawMessage    `json:"broombot"`
	Mopbot           json.RawMessage    `json:"mopbot"`
	Car              json.RawMessage    `json:"car"`
	CarEVStatus      *snapshot.Snapshot `json:"carEvStatus"`
	CarOdometer      json.RawMessage    `json:"carOdometer"`
	CameraURL        string             `json:"cameraURL"`
	RhizomeSchedule  *snapshot.Snapshot `json:"rhizomeSchedule"`
	RhizomeData      *snapshot.Snapshot `json:"rhizomeData"`
}

// PartnerView is what the daycare credential sees.
type PartnerView struct {
	CameraURL       string             `json:"cameraURL"`
	RhizomeSchedule *snapshot.Snapshot `json:"rhizomeSchedule"`
	RhizomeData     *snapshot.Snapshot `json:"rhizomeData"`
}

// Snapshots reads cached feeds. *snapshot.Store satisfies it.
type Snapshots interface {
	Get(key string) (snapshot.Snapshot, bool, error)
}

// Devices resolves devices. *device.Registry satisfies it.
type Devices interface {
	Robot(name string) (device.Robot, error)
	Vehicle() (device.Vehicle, error)
}

// Logger is the logging interface used by the composer.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Composer builds dashboard views. It keeps no state between calls.
type Composer struct {
	snapshots Snapshots
	devices   Devices
	dashboard config.DashboardConfig
	logger    Logger
}

// NewComposer creates a Composer. logger may be nil.
func NewComposer(snapshots Snapshots, devices Devices, dashboard config.DashboardConfig, logger Logger) *Composer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Composer{snapshots: snapshots, devices: devices, dashboard: dashboard, logger: logger}
}

// Compose returns an *AdminView or *PartnerView for id. Anonymous callers
// get auth.ErrUnauthenticated.
func (c *Composer) Compose(id auth.Identity) (any, error) {
	if err := auth.Authorize(id, auth.PermDashboardView); err != nil {
		return nil, err
	}

	partner := PartnerView{
		CameraURL:       c.dashboard.CameraURL,
		RhizomeSchedule: c.snapshot(snapshot.KeyRhizome),
		RhizomeData:     c.snapshot(snapshot.KeyRhizomePhotos),
	}
	if auth.HasPermission(id.Role, auth.PermDashboardFull) {
		return c.admin(partner), nil
	}
	return &partner, nil
}

func (c *Composer) admin(p PartnerView) *AdminView {
	v := &AdminView{
		MieleClientID:    c.dashboard.Miele.ClientID,
		MieleSecretID:    c.dashboard.Miele.SecretID,
		MieleAppliances:  nonNil(c.dashboard.Miele.Appliances),
		BoschClientID:    c.dashboard.Bosch.ClientID,
		BoschSecretID:    c.dashboard.Bosch.SecretID,
		BoschAppliance:   c.dashboard.Bosch.Appliance,
		FavouriteHomeKit: nonNil(c.dashboard.FavouriteHomeKit),
		Broombot:         c.robotStatus(device.NameBroombot),
		Mopbot:           c.robotStatus(device.NameMopbot),
		CarEVStatus:      c.snapshot(snapshot.KeyEVStatus),
		CameraURL:        p.CameraURL,
		RhizomeSchedule:  p.RhizomeSchedule,
		RhizomeData:      p.RhizomeData,
	}
	if car, err := c.devices.Vehicle(); err == nil {
		v.Car = car.Status()
		v.CarOdometer = car.Odometer()
	}
	return v
}

func (c *Composer) robotStatus(name string) json.RawMessage {
	r, err := c.devices.Robot(name)
	if err != nil {
		return nil
	}
	return r.CachedStatus()
}

// snapshot returns nil for absent or unreadable snapshots.
func (c *Composer) snapshot(key string) *snapshot.Snapshot {
	snap, ok, err := c.snapshots.Get(key)
	if err != nil {
		c.logger.Warn("reading snapshot failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &snap
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
