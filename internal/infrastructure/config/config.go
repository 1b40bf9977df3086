package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic Zigbee gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig              `yaml:"site"`
	Database    DatabaseConfig          `yaml:"database"`
	MQTT        MQTTConfig              `yaml:"mqtt"`
	Gateway     GatewayConfig           `yaml:"gateway"`
	Coordinator CoordinatorConfig       `yaml:"coordinator"`
	Devices     map[string]DeviceConfig `yaml:"devices"`
	Models      ModelsConfig            `yaml:"models"`
	State       StateConfig             `yaml:"state"`
	InfluxDB    InfluxDBConfig          `yaml:"influxdb"`
	API         APIConfig               `yaml:"api"`
	Tracing     TracingConfig           `yaml:"tracing"`
	Logging     LoggingConfig           `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
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
	BaseTopic string              `yaml:"base_topic"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// GatewayConfig controls the command pipeline.
type GatewayConfig struct {
	// MaxSelectorDepth is the deepest device selector (in topic segments)
	// the gateway subscribes for. Default: 20
	MaxSelectorDepth int `yaml:"max_selector_depth"`

	// QueueDepth bounds the number of commands waiting for the device network.
	// Default: 1000
	QueueDepth int `yaml:"queue_depth"`

	// CommandTimeout is the per-command deadline in seconds. Default: 10
	CommandTimeout int `yaml:"command_timeout"`

	// HealthInterval is the health publish period in seconds. Default: 30
	HealthInterval int `yaml:"health_interval"`

	// RetainState publishes device state with the MQTT retain flag.
	RetainState bool `yaml:"retain_state"`
}

// CoordinatorConfig locates the Zigbee coordinator service on the broker.
type CoordinatorConfig struct {
	TopicPrefix    string `yaml:"topic_prefix"`
	RequestTimeout int    `yaml:"request_timeout"`
}

// DeviceConfig describes one known device, keyed by IEEE address.
type DeviceConfig struct {
	FriendlyName string `yaml:"friendly_name"`
	ModelID      string `yaml:"model_id"`
	Manufacturer string `yaml:"manufacturer"`
	Retain       bool   `yaml:"retain"`
}

// ModelsConfig contains converter catalogue settings.
type ModelsConfig struct {
	// AliasesFile maps extra Zigbee model identifiers onto built-in definitions.
	AliasesFile string `yaml:"aliases_file"`
}

// StateConfig selects where last-known device state is kept.
type StateConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl"`
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

// APIConfig contains the admin HTTP server settings. The server exposes
// Prometheus metrics, health and the device registry.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// TracingConfig contains OpenTelemetry trace export settings. With no
// endpoint, spans are created but not exported.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// State backends.
const (
	StateBackendSQLite = "sqlite"
	StateBackendRedis  = "redis"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_ZIGBEE_SECTION_KEY
// For example: GRAYLOGIC_ZIGBEE_DATABASE_PATH, GRAYLOGIC_ZIGBEE_MQTT_HOST
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
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-zigbee.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-zigbee",
			},
			QoS:       1,
			BaseTopic: "zigbee2mqtt",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Gateway: GatewayConfig{
			MaxSelectorDepth: 20,
			QueueDepth:       1000,
			CommandTimeout:   10,
			HealthInterval:   30,
		},
		Coordinator: CoordinatorConfig{
			TopicPrefix:    "graylogic/zigbee/coordinator",
			RequestTimeout: 5,
		},
		State: StateConfig{
			Backend: StateBackendSQLite,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				TTL:  86400,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9464,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Tracing: TracingConfig{
			SampleRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_ZIGBEE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_MQTT_BASE_TOPIC"); v != "" {
		cfg.MQTT.BaseTopic = v
	}

	// State
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_REDIS_ADDR"); v != "" {
		cfg.State.Redis.Addr = v
	}
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_REDIS_PASSWORD"); v != "" {
		cfg.State.Redis.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Tracing
	if v := os.Getenv("GRAYLOGIC_ZIGBEE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.BaseTopic == "" {
		errs = append(errs, "mqtt.base_topic is required")
	} else if strings.ContainsAny(c.MQTT.BaseTopic, "+#") {
		errs = append(errs, "mqtt.base_topic must not contain wildcards")
	}

	// Gateway validation
	if c.Gateway.MaxSelectorDepth < 1 {
		errs = append(errs, "gateway.max_selector_depth must be at least 1")
	}
	if c.Gateway.QueueDepth < 1 {
		errs = append(errs, "gateway.queue_depth must be at least 1")
	}
	if c.Gateway.CommandTimeout < 1 {
		errs = append(errs, "gateway.command_timeout must be at least 1 second")
	}

	if c.Coordinator.TopicPrefix == "" {
		errs = append(errs, "coordinator.topic_prefix is required")
	}

	// Devices: friendly names must be unique so they resolve to one address.
	names := make(map[string]string, len(c.Devices))
	for ieee, dev := range c.Devices {
		if dev.ModelID == "" {
			errs = append(errs, fmt.Sprintf("devices.%s.model_id is required", ieee))
		}
		if dev.FriendlyName == "" {
			continue
		}
		key := strings.ToLower(dev.FriendlyName)
		if other, dup := names[key]; dup {
			errs = append(errs, fmt.Sprintf("devices.%s.friendly_name %q duplicates %s", ieee, dev.FriendlyName, other))
			continue
		}
		names[key] = ieee
	}

	switch c.State.Backend {
	case StateBackendSQLite:
	case StateBackendRedis:
		if c.State.Redis.Addr == "" {
			errs = append(errs, "state.redis.addr is required for the redis backend")
		}
	default:
		errs = append(errs, "state.backend must be sqlite or redis")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Tracing.Enabled && (c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1) {
		errs = append(errs, "tracing.sample_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCommandTimeout returns the per-command deadline as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Gateway.CommandTimeout) * time.Second
}

// GetHealthInterval returns the health publish period as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Gateway.HealthInterval) * time.Second
}

// GetRequestTimeout returns the coordinator request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Coordinator.RequestTimeout) * time.Second
}

// GetStateTTL returns the Redis state TTL as a Duration. Zero means no expiry.
func (c *Config) GetStateTTL() time.Duration {
	return time.Duration(c.State.Redis.TTL) * time.Second
}
