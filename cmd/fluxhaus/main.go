// FluxHaus Core is the household dashboard backend.
//
// It caches daycare and vehicle feeds on disk, relays robot and vehicle
// commands to their MQTT bridges, reconciles device state after each
// command, and serves a role-filtered dashboard over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fluxhaus/fluxhaus-core/internal/api"
	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/bridge"
	"github.com/fluxhaus/fluxhaus-core/internal/command"
	"github.com/fluxhaus/fluxhaus-core/internal/device"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/database"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/influxdb"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/logging"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/metrics"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/mqtt"
	"github.com/fluxhaus/fluxhaus-core/internal/poller"
	"github.com/fluxhaus/fluxhaus-core/internal/rhizome"
	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
	"github.com/fluxhaus/fluxhaus-core/internal/view"
	"github.com/fluxhaus/fluxhaus-core/migrations"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

const (
	// historyRetention is how long device status reports are kept.
	historyRetention = 30 * 24 * time.Hour
	pruneInterval    = 24 * time.Hour

	// drainTimeout bounds the wait for scheduled resyncs at shutdown.
	drainTimeout = 15 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting FluxHaus Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version, cfg.Site.ID)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving site timezone: %w", err)
	}

	// Storage
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	store, err := snapshot.NewStore(cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("opening snapshot cache: %w", err)
	}
	log.Info("snapshot cache ready", "dir", store.Dir())

	// Bus
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Telemetry
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		influxClient.SetOnError(func(err error) { log.Warn("InfluxDB write error", "error", err) })
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}
	m := metrics.New()

	// Devices
	history := device.NewSQLiteStateHistoryRepository(db.DB)
	registry, detach, err := startDevices(cfg, mqttClient, history, influxClient, log)
	if err != nil {
		return err
	}
	defer detach()

	// Orchestration
	hub := api.NewHub(cfg.WebSocket, log, m.WebSocketClients)
	events := bridge.NewEventPublisher(mqttClient, log)

	commandLog := command.NewSQLiteRepository(db.DB)
	dispatcher, err := command.New(command.Options{
		Devices:        registry,
		Log:            commandLog,
		Metrics:        m,
		Telemetry:      influxClient,
		Notifiers:      []command.Notifier{hub, events},
		Logger:         log.With("component", "dispatcher"),
		SettleDelay:    cfg.Commands.SettleDelay,
		DeepCleanDelay: cfg.Commands.DeepCleanDelay,
		CommandTimeout: cfg.Commands.CommandTimeout,
		ResyncTimeout:  cfg.Commands.ResyncTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if closeErr := dispatcher.Close(drainCtx); closeErr != nil {
			log.Warn("pending resyncs abandoned", "error", closeErr)
		}
	}()

	daycare := rhizome.NewClient(cfg.Rhizome, rhizome.WithLogger(log.With("component", "rhizome")))
	vehicle, err := registry.Vehicle()
	if err != nil {
		return fmt.Errorf("resolving vehicle: %w", err)
	}

	refresher := poller.New(store, poller.Options{
		Interval:     cfg.Polling.Interval,
		FetchTimeout: cfg.Polling.FetchTimeout,
		Notifiers:    []poller.Notifier{hub, events},
		Metrics:      m,
		Telemetry:    influxClient,
		Logger:       log.With("component", "poller"),
	})
	refresher.Add(
		poller.ScheduleJob(daycare),
		poller.PhotosJob(daycare),
		poller.EVStatusJob(vehicle),
	)

	// HTTP
	authenticator, err := auth.NewAuthenticator(cfg.Security)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Composer:   view.NewComposer(store, registry, cfg.Dashboard, log),
		Dispatcher: dispatcher,
		Auth:       authenticator,
		Booking:    daycare,
		Commands:   commandLog,
		Metrics:    m.Handler(),
		Hub:        hub,
		Location:   loc,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error {
		pruneHistory(gctx, history, log)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("background tasks: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startDevices creates the MQTT-backed robots and vehicle, subscribes them
// to their state topics and registers them. The returned func unsubscribes.
func startDevices(
	cfg *config.Config,
	client *mqtt.Client,
	history bridge.HistoryRecorder,
	telemetry bridge.Telemetry,
	log *logging.Logger,
) (*device.Registry, func(), error) {
	registry := device.NewRegistry()
	var attached []interface{ Detach() error }
	detach := func() {
		for _, d := range attached {
			if err := d.Detach(); err != nil {
				log.Debug("detaching device", "error", err)
			}
		}
	}

	options := func(name string, dc config.DeviceConfig) bridge.Options {
		return bridge.Options{
			Name:          name,
			DeviceID:      dc.ID,
			Protocol:      dc.Protocol,
			MQTT:          client,
			History:       history,
			Logger:        log.With("device", name),
			ResyncTimeout: cfg.Commands.ResyncTimeout,
		}
	}

	for name, dc := range map[string]config.DeviceConfig{
		device.NameBroombot: cfg.Devices.Broombot,
		device.NameMopbot:   cfg.Devices.Mopbot,
	} {
		robot, err := bridge.NewRobot(options(name, dc))
		if err != nil {
			detach()
			return nil, nil, fmt.Errorf("creating %s: %w", name, err)
		}
		if err := robot.Attach(); err != nil {
			detach()
			return nil, nil, fmt.Errorf("attaching %s: %w", name, err)
		}
		attached = append(attached, robot)
		registry.AddRobot(robot)
	}

	car, err := bridge.NewVehicle(options(device.NameCar, cfg.Devices.Vehicle), telemetry)
	if err != nil {
		detach()
		return nil, nil, fmt.Errorf("creating vehicle: %w", err)
	}
	if err := car.Attach(); err != nil {
		detach()
		return nil, nil, fmt.Errorf("attaching vehicle: %w", err)
	}
	attached = append(attached, car)
	registry.SetVehicle(car)

	log.Info("devices attached", "robots", registry.RobotNames(), "vehicle", car.Name())
	return registry, detach, nil
}

// pruneHistory drops old device status reports once a day until ctx ends.
func pruneHistory(ctx context.Context, history *device.SQLiteStateHistoryRepository, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := history.PruneHistory(ctx, historyRetention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("pruning device history failed", "error", err)
		case n > 0:
			log.Info("pruned device history", "rows", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// getConfigPath returns FLUXHAUS_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("FLUXHAUS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections before serving.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
