// Hearth Core - Home Telemetry and Control Backend
//
// This is the main entry point for the Hearth Core application. Hearth
// Core receives device telemetry over MQTT, persists it per owner, and
// exposes a feature-oriented REST and WebSocket API for browsers and
// companion apps.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthlink/hearth-core/internal/api"
	"github.com/hearthlink/hearth-core/internal/feature"
	"github.com/hearthlink/hearth-core/internal/feature/devicestatus"
	"github.com/hearthlink/hearth-core/internal/feature/firealert"
	"github.com/hearthlink/hearth-core/internal/feature/remotecontrol"
	"github.com/hearthlink/hearth-core/internal/identity"
	"github.com/hearthlink/hearth-core/internal/infrastructure/config"
	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlink/hearth-core/internal/infrastructure/mongodb"
	"github.com/hearthlink/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthlink/hearth-core/internal/infrastructure/tsdb"
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
	log.Info("starting Hearth Core",
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

	// Connect to MongoDB
	mongoClient, err := mongodb.Connect(ctx, cfg.Mongo)
	if err != nil {
		return fmt.Errorf("connecting to MongoDB: %w", err)
	}
	defer func() {
		log.Info("closing MongoDB connection")
		if closeErr := mongoClient.Close(context.Background()); closeErr != nil {
			log.Error("error closing MongoDB", "error", closeErr)
		}
	}()
	log.Info("MongoDB connected", "database", cfg.Mongo.Database)

	// User store and device identity resolution
	users := identity.NewMongoUserStore(mongoClient.Database())
	if indexErr := users.EnsureIndexes(ctx); indexErr != nil {
		return fmt.Errorf("ensuring user indexes: %w", indexErr)
	}
	resolver := identity.NewResolver(users, []byte(cfg.Security.SigningKey))

	// Connect to InfluxDB mirror (optional)
	tsdbClient, err := tsdb.Connect(cfg.InfluxDB)
	if err != nil {
		if !errors.Is(err, tsdb.ErrDisabled) {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		log.Info("InfluxDB mirror disabled")
	} else {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := tsdbClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		tsdbClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	}

	// WebSocket hub is created before the feature registry so ingestion
	// halves can push events from the moment they start.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Build the feature registry. Each feature gets its own MQTT
	// connection so one feature's subscriptions never interfere with
	// another's.
	registry, err := buildRegistry(ctx, cfg, mongoClient, resolver, tsdbClient, hub, log)
	if err != nil {
		return fmt.Errorf("building feature registry: %w", err)
	}
	go registry.Run(ctx)
	log.Info("feature registry running", "features", len(registry.Enabled()))

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		Users:    users,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MongoDB
	// The registry closes its own transports when the context cancels.

	log.Info("Hearth Core stopped")
	return nil
}

// buildRegistry declares the known features and constructs the enabled ones.
func buildRegistry(
	ctx context.Context,
	cfg *config.Config,
	mongoClient *mongodb.Client,
	resolver *identity.Resolver,
	tsdbClient *tsdb.Client,
	hub *api.Hub,
	log *logging.Logger,
) (*feature.Registry, error) {
	policy, err := feature.ParseFailurePolicy(cfg.Features.FailurePolicy)
	if err != nil {
		return nil, err
	}

	deps := feature.Deps{
		DB:             mongoClient.Database(),
		MongoClient:    mongoClient.Raw(),
		Resolver:       resolver,
		SigningKey:     cfg.Security.SigningKey,
		TSDB:           tsdbClient,
		Events:         hub,
		Logger:         log,
		QueueCapacity:  cfg.Features.QueueCapacity,
		RequestTimeout: cfg.GetRequestTimeout(),
	}

	connect := func(_ context.Context, clientID string) (feature.Transport, error) {
		mqttCfg := cfg.MQTT
		mqttCfg.Broker.ClientID = mqttCfg.Broker.ClientID + "-" + clientID
		client, connErr := mqtt.Connect(mqttCfg)
		if connErr != nil {
			return nil, connErr
		}
		client.SetLogger(log)
		return feature.MQTTTransport{Client: client}, nil
	}

	registry := feature.NewRegistry(deps, connect, policy, log)
	registry.Register(feature.Registration{Desc: devicestatus.Desc(), New: devicestatus.New})
	registry.Register(feature.Registration{Desc: firealert.Desc(), New: firealert.New})
	registry.Register(feature.Registration{Desc: remotecontrol.Desc(), New: remotecontrol.New})

	if err := registry.Build(ctx, cfg.Features); err != nil {
		return nil, err
	}
	return registry, nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
