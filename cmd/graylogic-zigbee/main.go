// Gray Logic Zigbee - MQTT command gateway for Zigbee devices
//
// This is the main entry point for the Zigbee gateway. It listens for
// zigbee2mqtt-style command topics (<base>/<device>[/<endpoint>]/set|get),
// translates each message into Zigbee cluster commands using the model
// catalogue, sends them to the coordinator service one at a time, and
// publishes the resulting device state.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-zigbee/internal/api"
	"github.com/nerrad567/gray-logic-zigbee/internal/audit"
	"github.com/nerrad567/gray-logic-zigbee/internal/bridges/zigbee"
	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
	"github.com/nerrad567/gray-logic-zigbee/internal/device"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/tracing"

	_ "github.com/nerrad567/gray-logic-zigbee/migrations"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Zigbee",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Tracing
	tp, err := tracing.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("error shutting down tracing", "error", shutdownErr)
		}
	}()
	if tp.Enabled() {
		log.Info("tracing enabled",
			"endpoint", cfg.Tracing.Endpoint,
			"sample_ratio", cfg.Tracing.SampleRatio)
	}

	// Database
	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("registry"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	if seedErr := registry.Seed(ctx, configuredDevices(cfg.Devices)); seedErr != nil {
		return fmt.Errorf("seeding devices: %w", seedErr)
	}
	log.Info("device registry initialised", "devices", registry.Count())

	// Model catalogue
	catalog := converters.DefaultCatalog()
	if cfg.Models.AliasesFile != "" {
		n, aliasErr := catalog.LoadAliases(cfg.Models.AliasesFile)
		if aliasErr != nil {
			return fmt.Errorf("loading model aliases: %w", aliasErr)
		}
		log.Info("model aliases loaded", "path", cfg.Models.AliasesFile, "aliases", n)
	}
	log.Info("model catalogue ready",
		"models", len(catalog.Models()),
		"zigbee_models", catalog.ZigbeeModelCount())

	// MQTT
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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"base_topic", cfg.MQTT.BaseTopic,
	)
	mqttAdapter := &mqttBridgeAdapter{client: mqttClient}

	// State store
	var stateStore zigbee.StateStore = registry
	if cfg.State.Backend == config.StateBackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.State.Redis.Addr,
			Password: cfg.State.Redis.Password,
			DB:       cfg.State.Redis.DB,
		})
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			return fmt.Errorf("connecting to Redis: %w", pingErr)
		}
		stateStore = device.NewRedisStateStore(rdb, cfg.GetStateTTL())
		log.Info("Redis state store connected", "addr", cfg.State.Redis.Addr)
	}

	// Coordinator
	coordinator := zigbee.NewCoordinatorClient(zigbee.CoordinatorOptions{
		MQTTClient:     mqttAdapter,
		TopicPrefix:    cfg.Coordinator.TopicPrefix,
		RequestTimeout: cfg.GetRequestTimeout(),
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // Validated 0-2
		Logger:         log.Component("coordinator"),
		TracerProvider: tp.TracerProvider(),
	})
	if startErr := coordinator.Start(); startErr != nil {
		return fmt.Errorf("starting coordinator client: %w", startErr)
	}
	log.Info("coordinator client started", "topic_prefix", cfg.Coordinator.TopicPrefix)

	// Telemetry
	collector := metrics.New()
	commandLog := audit.NewSQLiteRepository(db.DB)
	commandLog.SetLogger(log.Component("audit"))
	recorders := []zigbee.CommandRecorder{commandLog}

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorders = append(recorders, influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Bridge
	statePublisher := zigbee.NewDeviceStatePublisher(zigbee.StatePublisherOptions{
		MQTTClient: mqttAdapter,
		Store:      stateStore,
		BaseTopic:  cfg.MQTT.BaseTopic,
		QoS:        byte(cfg.MQTT.QoS), //nolint:gosec // Validated 0-2
		Retain:     cfg.Gateway.RetainState,
		Logger:     log.Component("state"),
	})

	bridge, err := zigbee.NewBridge(zigbee.BridgeOptions{
		MQTTClient:       mqttAdapter,
		Devices:          registry,
		Models:           catalog,
		Network:          coordinator,
		State:            statePublisher,
		BaseTopic:        cfg.MQTT.BaseTopic,
		MaxSelectorDepth: cfg.Gateway.MaxSelectorDepth,
		QoS:              byte(cfg.MQTT.QoS), //nolint:gosec // Validated 0-2
		Queue: zigbee.QueueOptions{
			MaxDepth: cfg.Gateway.QueueDepth,
			Timeout:  cfg.GetCommandTimeout(),
		},
		HealthInterval: cfg.GetHealthInterval(),
		Version:        version,
		Metrics:        collector,
		Recorders:      recorders,
		TracerProvider: tp.TracerProvider(),
		Logger:         log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	bridge.SetDeviceCount(registry.Count())
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("Zigbee bridge started")

	if influxClient != nil {
		go writeQueueStats(ctx, influxClient, bridge, cfg.GetHealthInterval())
	}

	// Admin API
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log.Component("api"),
			Registry:  registry,
			Models:    catalog,
			Gateway:   bridge,
			State:     stateStore,
			Commands:  commandLog,
			Metrics:   collector,
			BaseTopic: cfg.MQTT.BaseTopic,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, bridge, InfluxDB, Redis,
	// MQTT, database.
	log.Info("Gray Logic Zigbee stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_ZIGBEE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_ZIGBEE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// configuredDevices converts the config device map into registry devices,
// ordered by IEEE address so seeding is deterministic.
func configuredDevices(devices map[string]config.DeviceConfig) []device.Device {
	out := make([]device.Device, 0, len(devices))
	for ieee, d := range devices {
		out = append(out, device.Device{
			IEEEAddress:  ieee,
			FriendlyName: d.FriendlyName,
			ModelID:      d.ModelID,
			Manufacturer: d.Manufacturer,
			Retain:       d.Retain,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IEEEAddress < out[j].IEEEAddress })
	return out
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
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

// queueStatsSource is satisfied by the bridge.
type queueStatsSource interface {
	QueueStats() zigbee.QueueStats
}

// writeQueueStats samples the command queue into InfluxDB until ctx ends.
func writeQueueStats(ctx context.Context, influxClient *influxdb.Client, src queueStatsSource, interval time.Duration) {
	if interval <= 0 {
		interval = zigbee.DefaultHealthInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := src.QueueStats()
			influxClient.WriteQueueStats(s.Depth, s.Succeeded, s.Failed, s.Rejected)
		}
	}
}
