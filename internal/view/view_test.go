package view

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/device"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
)

type stubRobot struct {
	name   string
	status json.RawMessage
}

func (s stubRobot) Name() string                                { return s.name }
func (s stubRobot) TurnOn(context.Context) (device.Ack, error)  { return device.Ack{}, nil }
func (s stubRobot) TurnOff(context.Context) (device.Ack, error) { return device.Ack{}, nil }
func (s stubRobot) Resync(context.Context) error                { return nil }
func (s stubRobot) CachedStatus() json.RawMessage               { return s.status }
func (s stubRobot) State() device.DeviceState                   { return device.DeviceState{} }

type stubCar struct {
	status, odometer json.RawMessage
}

func (stubCar) Name() string                               { return device.NameCar }
func (stubCar) Start(context.Context) (device.Ack, error)  { return device.Ack{}, nil }
func (stubCar) Stop(context.Context) (device.Ack, error)   { return device.Ack{}, nil }
func (stubCar) Lock(context.Context) (device.Ack, error)   { return device.Ack{}, nil }
func (stubCar) Unlock(context.Context) (device.Ack, error) { return device.Ack{}, nil }
func (stubCar) Resync(context.Context) error               { return nil }
func (c stubCar) Status() json.RawMessage                  { return c.status }
func (c stubCar) Odometer() json.RawMessage                { return c.odometer }
func (stubCar) EVStatus() json.RawMessage                  { return nil }
func (stubCar) State() device.DeviceState                  { return device.DeviceState{} }

type brokenStore struct{}

func (brokenStore) Get(string) (snapshot.Snapshot, bool, error) {
	return snapshot.Snapshot{}, false, snapshot.ErrCorrupt
}

var (
	admin   = auth.Identity{Username: "admin", Role: auth.RoleAdmin}
	partner = auth.Identity{Username: "rhizome", Role: auth.RolePartner}
)

func testDashboard() config.DashboardConfig {
	return config.DashboardConfig{
		CameraURL:        "https://cam.example/stream",
		FavouriteHomeKit: []string{"Kitchen", "Hall"},
		Miele:            config.MieleConfig{ClientID: "m-id", SecretID: "m-secret", Appliances: []string{"washer"}},
		Bosch:            config.BoschConfig{ClientID: "b-id", SecretID: "b-secret", Appliance: "dishwasher"},
	}
}

func populated(t *testing.T) (*snapshot.Store, *device.Registry) {
	t.Helper()
	store, err := snapshot.NewStore(t.TempDir(), snapshot.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatal(err)
	}
	for key, payload := range map[string]any{
		snapshot.KeyRhizome:       map[string]any{"days": []string{"mon"}},
		snapshot.KeyRhizomePhotos: map[string]any{"news": "https://news", "photos": []string{"a.jpg"}},
		snapshot.KeyEVStatus:      map[string]any{"batteryStatus": 80},
	} {
		if _, err := store.Put(key, payload); err != nil {
			t.Fatal(err)
		}
	}

	reg := device.NewRegistry()
	reg.AddRobot(stubRobot{name: device.NameBroombot, status: json.RawMessage(`{"phase":"run"}`)})
	reg.AddRobot(stubRobot{name: device.NameMopbot})
	reg.SetVehicle(stubCar{status: json.RawMessage(`{"doorLock":true}`), odometer: json.RawMessage(`{"value":100}`)})
	return store, reg
}

func keysOf(t *testing.T, v any) map[string]json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return m
}

func TestCompose_Admin(t *testing.T) {
	store, reg := populated(t)
	c := NewComposer(store, reg, testDashboard(), nil)

	v, err := c.Compose(admin)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, ok := v.(*AdminView); !ok {
		t.Fatalf("view type = %T, want *AdminView", v)
	}

	m := keysOf(t, v)
	want := map[string]string{
		"mieleClientId":    `"m-id"`,
		"mieleAppliances":  `["washer"]`,
		"boschAppliance":   `"dishwasher"`,
		"favouriteHomeKit": `["Kitchen","Hall"]`,
		"broombot":         `{"phase":"run"}`,
		"mopbot":           `null`,
		"car":              `{"doorLock":true}`,
		"carOdometer":      `{"value":100}`,
		"carEvStatus":      `{"timestamp":"2026-03-01T08:00:00.000Z","batteryStatus":80}`,
		"cameraURL":        `"https://cam.example/stream"`,
	}
	for k, w := range want {
		if got := string(m[k]); got != w {
			t.Errorf("%s = %s, want %s", k, got, w)
		}
	}
	if len(m) != 15 {
		t.Errorf("admin view has %d keys, want 15", len(m))
	}
}

func TestCompose_Partner(t *testing.T) {
	store, reg := populated(t)
	c := NewComposer(store, reg, testDashboard(), nil)

	v, err := c.Compose(partner)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	m := keysOf(t, v)
	if len(m) != 3 {
		t.Fatalf("partner view keys = %v", m)
	}
	for _, k := range []string{"cameraURL", "rhizomeSchedule", "rhizomeData"} {
		if _, ok := m[k]; !ok {
			t.Errorf("partner view missing %s", k)
		}
	}
	if string(m["rhizomeData"]) != `{"timestamp":"2026-03-01T08:00:00.000Z","news":"https://news","photos":["a.jpg"]}` {
		t.Errorf("rhizomeData = %s", m["rhizomeData"])
	}
}

func TestCompose_AdminIsSupersetOfPartner(t *testing.T) {
	store, reg := populated(t)
	c := NewComposer(store, reg, testDashboard(), nil)

	a, _ := c.Compose(admin)
	p, _ := c.Compose(partner)
	am, pm := keysOf(t, a), keysOf(t, p)
	for k, v := range pm {
		if string(am[k]) != string(v) {
			t.Errorf("admin %s = %s, partner has %s", k, am[k], v)
		}
	}
	if len(am) <= len(pm) {
		t.Error("admin view should have strictly more keys")
	}
}

func TestCompose_Anonymous(t *testing.T) {
	store, reg := populated(t)
	c := NewComposer(store, reg, testDashboard(), nil)

	for _, id := range []auth.Identity{auth.Anonymous, {}} {
		if _, err := c.Compose(id); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("Compose(%+v) error = %v, want ErrUnauthenticated", id, err)
		}
	}
}

func TestCompose_MissingDataIsNull(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewComposer(store, device.NewRegistry(), config.DashboardConfig{}, nil)

	v, err := c.Compose(admin)
	if err != nil {
		t.Fatal(err)
	}
	m := keysOf(t, v)
	for _, k := range []string{"broombot", "mopbot", "car", "carEvStatus", "carOdometer", "rhizomeSchedule", "rhizomeData"} {
		raw, ok := m[k]
		if !ok {
			t.Errorf("key %s missing", k)
			continue
		}
		if string(raw) != "null" {
			t.Errorf("%s = %s, want null", k, raw)
		}
	}
	if string(m["mieleAppliances"]) != "[]" || string(m["favouriteHomeKit"]) != "[]" {
		t.Errorf("list fields = %s, %s", m["mieleAppliances"], m["favouriteHomeKit"])
	}
}

func TestCompose_UnreadableSnapshotIsNull(t *testing.T) {
	c := NewComposer(brokenStore{}, device.NewRegistry(), testDashboard(), nil)

	v, err := c.Compose(partner)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	pv := v.(*PartnerView)
	if pv.RhizomeSchedule != nil || pv.RhizomeData != nil {
		t.Error("unreadable snapshots should be nil")
	}
}
