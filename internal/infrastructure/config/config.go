package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for FluxHaus Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Cache     CacheConfig     `yaml:"cache"`
	Polling   PollingConfig   `yaml:"polling"`
	Commands  CommandsConfig  `yaml:"commands"`
	Devices   DevicesConfig   `yaml:"devices"`
	Rhizome   RhizomeConfig   `yaml:"rhizome"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// SiteConfig contains household-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Timezone is used to render local wall-clock times (daycare bookings).
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	// Realm is announced in the Basic auth challenge.
	Realm string       `yaml:"realm"`
	JWT   JWTConfig    `yaml:"jwt"`
	Users []UserConfig `yaml:"users"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// UserConfig is a static credential. Exactly one of Password or PasswordHash
// is normally set; PasswordHash takes precedence and must be Argon2id PHC.
type UserConfig struct {
	Username     string `yaml:"username"`
	Role         string `yaml:"role"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// CacheConfig contains snapshot cache settings.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// PollingConfig contains upstream snapshot refresh settings.
type PollingConfig struct {
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// CommandsConfig contains command dispatch and reconciliation timing.
type CommandsConfig struct {
	// SettleDelay is the wait between a vehicle command and its resync.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// DeepCleanDelay is the expected vacuum runtime before the mop starts.
	DeepCleanDelay time.Duration `yaml:"deep_clean_delay"`

	// CommandTimeout bounds the wait for a command acknowledgement.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// ResyncTimeout bounds the wait for a device to report fresh status.
	ResyncTimeout time.Duration `yaml:"resync_timeout"`
}

// DevicesConfig names the bridge identities of the managed devices.
type DevicesConfig struct {
	Broombot DeviceConfig `yaml:"broombot"`
	Mopbot   DeviceConfig `yaml:"mopbot"`
	Vehicle  DeviceConfig `yaml:"vehicle"`
}

// DeviceConfig identifies one device on the MQTT bridge bus.
type DeviceConfig struct {
	ID string `yaml:"id"`

	// Protocol tells the bridge which vendor integration drives the
	// device. It travels with every command and resync request.
	Protocol string `yaml:"protocol"`
}

// RhizomeConfig contains the daycare upstream settings.
type RhizomeConfig struct {
	ScheduleURL     string `yaml:"schedule_url"`
	ScheduleCode    string `yaml:"schedule_code"`
	Token           string `yaml:"token"`
	BookingURL      string `yaml:"booking_url"`
	BookingTemplate string `yaml:"booking_template"`
	PhotosURL       string `yaml:"photos_url"`
	NewsURL         string `yaml:"news_url"`

	// PhotosToken is an optional bearer token for the photo listing API.
	PhotosToken string `yaml:"photos_token"`
}

// DashboardConfig holds configuration-derived fields exposed on the dashboard.
type DashboardConfig struct {
	CameraURL        string      `yaml:"camera_url"`
	FavouriteHomeKit []string    `yaml:"favourite_homekit"`
	Miele            MieleConfig `yaml:"miele"`
	Bosch            BoschConfig `yaml:"bosch"`
}

// MieleConfig contains Miele appliance API settings.
type MieleConfig struct {
	ClientID   string   `yaml:"client_id"`
	SecretID   string   `yaml:"secret_id"`
	Appliances []string `yaml:"appliances"`
}

// BoschConfig contains Bosch Home Connect settings.
type BoschConfig struct {
	ClientID  string `yaml:"client_id"`
	SecretID  string `yaml:"secret_id"`
	Appliance string `yaml:"appliance"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLUXHAUS_SECTION_KEY
// For example: FLUXHAUS_DATABASE_PATH, FLUXHAUS_RHIZOME_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "haus-001",
			Name:     "FluxHaus",
			Timezone: "Local",
		},
		Database: DatabaseConfig{
			Path:        "./data/fluxhaus.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fluxhaus-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			Realm: "fluxhaus",
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Cache: CacheConfig{
			Dir: "./cache",
		},
		Polling: PollingConfig{
			Interval:     time.Hour,
			FetchTimeout: 10 * time.Second,
		},
		Commands: CommandsConfig{
			SettleDelay:    5 * time.Second,
			DeepCleanDelay: 20 * time.Minute,
			CommandTimeout: 10 * time.Second,
			ResyncTimeout:  10 * time.Second,
		},
		Devices: DevicesConfig{
			Broombot: DeviceConfig{ID: "broombot", Protocol: "roomba"},
			Mopbot:   DeviceConfig{ID: "mopbot", Protocol: "roomba"},
			Vehicle:  DeviceConfig{ID: "car", Protocol: "bluelink"},
		},
		Rhizome: RhizomeConfig{
			PhotosURL: "https://api.github.com/repos/djensenius/Rhizome-Data/contents/photos?ref=main",
			NewsURL:   "https://raw.githubusercontent.com/djensenius/Rhizome-Data/main/news.md",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLUXHAUS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLUXHAUS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FLUXHAUS_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}

	// MQTT
	if v := os.Getenv("FLUXHAUS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLUXHAUS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLUXHAUS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("FLUXHAUS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("FLUXHAUS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("FLUXHAUS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	for i := range cfg.Security.Users {
		key := "FLUXHAUS_USER_" + envName(cfg.Security.Users[i].Username) + "_PASSWORD"
		if v := os.Getenv(key); v != "" {
			cfg.Security.Users[i].Password = v
		}
	}

	// Rhizome upstream credentials
	if v := os.Getenv("FLUXHAUS_RHIZOME_TOKEN"); v != "" {
		cfg.Rhizome.Token = v
	}
	if v := os.Getenv("FLUXHAUS_RHIZOME_SCHEDULE_CODE"); v != "" {
		cfg.Rhizome.ScheduleCode = v
	}
	if v := os.Getenv("FLUXHAUS_RHIZOME_BOOKING_TEMPLATE"); v != "" {
		cfg.Rhizome.BookingTemplate = v
	}
	if v := os.Getenv("FLUXHAUS_RHIZOME_PHOTOS_TOKEN"); v != "" {
		cfg.Rhizome.PhotosToken = v
	}
}

// envName upper-cases a username and replaces characters that are not valid
// in environment variable names.
func envName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}

// Validate checks the configuration for errors and missing credentials.
// A service that starts half-configured would serve nulls forever, so every
// problem is reported and startup is refused.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone is invalid: %v", err))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Cache.Dir == "" {
		errs = append(errs, "cache.dir is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set FLUXHAUS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(c.Security.Users) == 0 {
		errs = append(errs, "security.users must contain at least one user")
	}
	for i, u := range c.Security.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Sprintf("security.users[%d].username is required", i))
		}
		if u.Role != "admin" && u.Role != "partner" {
			errs = append(errs, fmt.Sprintf("security.users[%d].role must be admin or partner", i))
		}
		if u.Password == "" && u.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("security.users[%d] needs a password or password_hash (FLUXHAUS_USER_%s_PASSWORD)", i, envName(u.Username)))
		}
	}

	if c.Polling.Interval <= 0 {
		errs = append(errs, "polling.interval must be positive")
	}
	if c.Polling.FetchTimeout <= 0 {
		errs = append(errs, "polling.fetch_timeout must be positive")
	}
	if c.Commands.SettleDelay <= 0 {
		errs = append(errs, "commands.settle_delay must be positive")
	}
	if c.Commands.DeepCleanDelay <= 0 {
		errs = append(errs, "commands.deep_clean_delay must be positive")
	}
	if c.Commands.CommandTimeout <= 0 {
		errs = append(errs, "commands.command_timeout must be positive")
	}
	if c.Commands.ResyncTimeout <= 0 {
		errs = append(errs, "commands.resync_timeout must be positive")
	}

	for name, d := range map[string]DeviceConfig{
		"broombot": c.Devices.Broombot,
		"mopbot":   c.Devices.Mopbot,
		"vehicle":  c.Devices.Vehicle,
	} {
		if d.ID == "" || d.Protocol == "" {
			errs = append(errs, fmt.Sprintf("devices.%s.id and protocol are required", name))
		}
	}

	if c.Rhizome.Token == "" {
		errs = append(errs, "rhizome.token is required (set FLUXHAUS_RHIZOME_TOKEN environment variable)")
	}
	if c.Rhizome.ScheduleURL == "" || c.Rhizome.ScheduleCode == "" {
		errs = append(errs, "rhizome.schedule_url and rhizome.schedule_code are required")
	}
	if c.Rhizome.BookingURL == "" {
		errs = append(errs, "rhizome.booking_url is required")
	}
	if c.Rhizome.BookingTemplate == "" {
		errs = append(errs, "rhizome.booking_template is required")
	}
	if c.Rhizome.PhotosURL == "" {
		errs = append(errs, "rhizome.photos_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location resolves the site timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Site.Timezone == "" || c.Site.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Site.Timezone)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
