// Gray Logic Presence - room occupancy from BLE proximity beacons
//
// This is the main entry point for the Gray Logic Presence service. It
// monitors one BLE beacon per room through a scanner bridge on MQTT and
// turns region callbacks into persisted room occupancy:
//   - Rooms and their beacons are catalogued in SQLite
//   - Region status survives restarts (SQLite or Redis)
//   - Entered/exited events fan out to MQTT, WebSocket and metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-presence/migrations"

	"github.com/nerrad567/gray-logic-presence/internal/api"
	"github.com/nerrad567/gray-logic-presence/internal/audit"
	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/bridges/ble"
	"github.com/nerrad567/gray-logic-presence/internal/eventbus"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/location"
	"github.com/nerrad567/gray-logic-presence/internal/metrics"
	"github.com/nerrad567/gray-logic-presence/internal/notify"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
	"github.com/nerrad567/gray-logic-presence/internal/regionstatus"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/presence.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	// Bootstrap logger until config is loaded
	log := logging.Bootstrap(version)
	log.Info("starting Gray Logic Presence",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("site_id", cfg.Site.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)

	rooms := location.NewSQLiteRepository(db.DB)

	// Open the persisted region status
	backend, closeBackend, err := openStatusBackend(cfg.StatusStore, db)
	if err != nil {
		return err
	}
	defer closeBackend()

	store, err := regionstatus.Open(ctx, backend)
	if err != nil {
		return fmt.Errorf("loading region status: %w", err)
	}
	log.Info("region status loaded", "backend", cfg.StatusStore.Backend, "regions", store.Len())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT,
		mqtt.WithLogger(log),
		mqtt.WithSite(cfg.Site.ID),
		mqtt.OnConnect(func() {
			log.Info("MQTT session established")
		}),
		mqtt.OnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := ble.NewBridge(ble.Options{
		MQTTClient: mqttClient,
		ScannerID:  cfg.Presence.ScannerID,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating BLE bridge: %w", err)
	}

	bus := eventbus.New(cfg.Presence.SubscriberBuffer)
	defer bus.Close()
	gate := permission.NewGate()

	collector := metrics.New()
	if watchErr := collector.WatchBus(bus); watchErr != nil {
		return fmt.Errorf("registering bus metrics: %w", watchErr)
	}

	opts := []presence.Option{
		presence.WithLogger(log),
		presence.WithMaxRegions(cfg.Presence.MaxRegions),
		presence.WithIngressBuffer(cfg.Presence.IngressBuffer),
		presence.WithRecorder(collector),
		presence.WithObserver(collector),
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB,
			influxdb.WithLogger(log),
			influxdb.WithSite(cfg.Site.ID),
		)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		opts = append(opts, presence.WithTelemetry(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var notifier *notify.Notifier
	if cfg.Presence.DebugNotifications {
		notifier = notify.New(mqttClient, cfg.Presence.NotificationClient, log)
		opts = append(opts, presence.WithObserver(notifier))
		log.Info("debug notifications enabled", "client", cfg.Presence.NotificationClient)
	}

	engine := presence.New(bridge, store, bus, gate, opts...)

	// Background workers share one context: the first failure, or the
	// shutdown signal, stops them all.
	runCtx, stopWork := context.WithCancel(ctx)
	workers, workCtx := errgroup.WithContext(runCtx)
	defer func() {
		stopWork()
		_ = workers.Wait() //nolint:errcheck // Result is reported on the normal path
	}()

	workers.Go(func() error { return engine.Run(workCtx) })

	if startErr := bridge.Start(workCtx, engine); startErr != nil {
		return fmt.Errorf("starting BLE bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping BLE bridge")
		bridge.Stop()
	}()
	log.Info("BLE bridge started", "scanner_id", cfg.Presence.ScannerID)

	publisher := ble.NewOccupancyPublisher(mqttClient, bus, gate, log)
	workers.Go(func() error { return publisher.Run(workCtx) })
	if notifier != nil {
		workers.Go(func() error { return notifier.Run(workCtx) })
	}

	if cfg.Presence.Autostart {
		autostart(workCtx, engine, rooms, log)
	}

	// Start the API server
	var apiServer *api.Server
	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Engine:   engine,
			Rooms:    rooms,
			Audit:    audit.NewSQLiteRepository(db.DB),
			Metrics:  collector.Handler(),
			Checks:   checks,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(workCtx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-workCtx.Done()
	if ctx.Err() != nil {
		log.Info("shutdown signal received, cleaning up")
	} else {
		log.Error("background worker failed, shutting down")
	}

	stopWork()
	workErr := ignoreCanceled(workers.Wait())

	// Deferred Close() calls run in reverse order:
	// API, BLE bridge, InfluxDB, MQTT, status backend, database.
	log.Info("Gray Logic Presence stopped")
	return workErr
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStatusBackend builds the configured region status backend. The
// returned close function is always safe to call.
func openStatusBackend(cfg config.StatusStoreConfig, db *database.DB) (regionstatus.Backend, func(), error) {
	switch cfg.Backend {
	case config.StatusBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closeFn := func() {
			_ = client.Close() //nolint:errcheck // Best effort on shutdown
		}
		return regionstatus.NewRedisBackend(client, cfg.Redis.Key), closeFn, nil
	case config.StatusBackendSQLite, "":
		return regionstatus.NewSQLiteBackend(db), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown status backend %q", cfg.Backend)
	}
}

// autostart starts scanning every catalogued room with a complete beacon.
// Failures are logged; the service keeps running with whatever started.
func autostart(ctx context.Context, engine *presence.Engine, repo location.Repository, log *logging.Logger) {
	catalogue, err := repo.ListRooms(ctx)
	if err != nil {
		log.Error("autostart: listing rooms", "error", err)
		return
	}

	rooms := make([]beacon.Room, 0, len(catalogue))
	for _, r := range catalogue {
		rooms = append(rooms, r.Room)
	}

	started, err := engine.StartAll(ctx, rooms)
	if err != nil {
		log.Warn("autostart: some rooms failed to start", "error", err)
	}
	log.Info("autostart complete", "rooms", len(rooms), "started", started)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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

// ignoreCanceled maps a context cancellation to a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
