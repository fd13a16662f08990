package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

const baseConfig = `
site:
  id: test-site
  timezone: UTC

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "fluxhaus-test"
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8080

security:
  jwt:
    secret: "test-secret-for-development-only-0123456789"
  users:
    - username: admin
      role: admin
      password: admin-pass

devices:
  broombot: {id: broombot-1, protocol: mqtt}
  mopbot: {id: mopbot-1, protocol: mqtt}
  vehicle: {id: car-1, protocol: mqtt}

rhizome:
  schedule_url: "http://127.0.0.1:1/schedule"
  schedule_code: "ABC"
  token: "test-token"
  booking_url: "http://127.0.0.1:1/booking"
  booking_template: "{}"
  photos_url: "http://127.0.0.1:1/photos"
`

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("FLUXHAUS_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want config load failure", err)
	}
}

// TestRun_MissingDatabasePath verifies validation rejects an empty database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig + `
database:
  path: ""
cache:
  dir: "` + filepath.Join(dir, "cache") + `"
`
	t.Setenv("FLUXHAUS_CONFIG", writeConfig(t, cfg))
	t.Setenv("FLUXHAUS_DB_PATH", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_BrokerUnreachable verifies startup stops when MQTT cannot connect.
// Storage is opened and migrated before the broker is dialled.
func TestRun_BrokerUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the MQTT connect timeout")
	}
	dir := t.TempDir()
	cfg := baseConfig + `
database:
  path: "` + filepath.Join(dir, "fluxhaus.db") + `"
  wal_mode: true
  busy_timeout: 5
cache:
  dir: "` + filepath.Join(dir, "cache") + `"
`
	t.Setenv("FLUXHAUS_CONFIG", writeConfig(t, cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a broker")
	}
	if !strings.Contains(err.Error(), "MQTT") {
		t.Errorf("error = %v, want MQTT failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "fluxhaus.db")); statErr != nil {
		t.Errorf("database was not created before the broker dial: %v", statErr)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("FLUXHAUS_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("FLUXHAUS_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
