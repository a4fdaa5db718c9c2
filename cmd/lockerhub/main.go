// LockerHub Core - Gym Locker Control Platform
//
// This is the main entry point for the LockerHub Core application.
// LockerHub drives banks of network-attached locker controllers over
// MQTT: heartbeat-driven auto-discovery, RFID access processing with
// automatic assignment, scheduled expiry, and a REST/WebSocket API for
// front-desk dashboards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lockerhub/lockerhub-core/migrations"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/api"
	"github.com/lockerhub/lockerhub-core/internal/engine"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/config"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/database"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/logging"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/telemetry"
	"github.com/lockerhub/lockerhub-core/internal/locker"
	"github.com/lockerhub/lockerhub-core/internal/member"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting LockerHub Core",
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
	log = logging.New(cfg.Logging, version)
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise locker registry
	lockerRepo := locker.NewSQLiteRepository(db.DB)
	registry := locker.NewRegistry(lockerRepo)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading locker registry: %w", refreshErr)
	}

	groupRepo := locker.NewSQLiteGroupRepository(db.DB)
	memberRepo := member.NewSQLiteRepository(db.DB)
	activityRepo := activity.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB telemetry (optional)
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.Telemetry)
		if err != nil && !errors.Is(err, telemetry.ErrDisabled) {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		if telemetryClient != nil {
			defer func() {
				log.Info("closing telemetry connection")
				if closeErr := telemetryClient.Close(); closeErr != nil {
					log.Error("error closing telemetry", "error", closeErr)
				}
			}()
			telemetryClient.SetOnError(func(err error) {
				log.Error("telemetry write error", "error", err)
			})
			log.Info("telemetry connected",
				"url", cfg.Telemetry.URL,
				"bucket", cfg.Telemetry.Bucket,
			)
		}
	} else {
		log.Info("telemetry disabled")
	}

	// Build the assignment engine over the registry and repositories
	eng := engine.New(cfg.Engine, registry, groupRepo, memberRepo, activityRepo, mqttClient)
	eng.SetLogger(log)
	if telemetryClient != nil {
		eng.SetTelemetry(telemetryClient)
	}

	// Create the API server first so its WebSocket hub can receive
	// engine change notifications.
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		Groups:   groupRepo,
		Members:  memberRepo,
		Activity: activityRepo,
		Engine:   eng,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	eng.SetNotifier(apiServer.Hub())

	// Subscribe to device traffic and start the sweeps
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	log.Info("engine started")

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, telemetryClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Telemetry (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("LockerHub Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LOCKERHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LOCKERHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - telemetryClient: Telemetry client to check (may be nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetryClient *telemetry.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
