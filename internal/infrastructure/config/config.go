package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Status store backends.
const (
	StatusBackendSQLite = "sqlite"
	StatusBackendRedis  = "redis"
)

// maxPlatformRegions is the hard limit most platform location subsystems
// impose on concurrently monitored regions.
const maxPlatformRegions = 20

// Config is the root configuration structure for Gray Logic Presence.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Database    DatabaseConfig    `yaml:"database"`
	StatusStore StatusStoreConfig `yaml:"status_store"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
	Presence    PresenceConfig    `yaml:"presence"`
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

// StatusStoreConfig selects where the region status map is persisted.
type StatusStoreConfig struct {
	// Backend is "sqlite" (default, uses the main database) or "redis".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings for the redis status backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Key is the hash holding region id -> entered flags.
	Key string `yaml:"key"`
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
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
// When Secret is empty, the API accepts unauthenticated scan commands
// (development only).
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// PresenceConfig contains beacon monitoring engine settings.
type PresenceConfig struct {
	// ScannerID identifies the BLE scanner bridge this core drives.
	ScannerID string `yaml:"scanner_id"`

	// MaxRegions caps concurrently monitored regions. Most platforms
	// refuse more than 20.
	MaxRegions int `yaml:"max_regions"`

	// SubscriberBuffer is the per-subscriber event bus buffer. A subscriber
	// that falls this far behind misses events.
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	// IngressBuffer is the engine's callback queue length.
	IngressBuffer int `yaml:"ingress_buffer"`

	// Autostart begins scanning every room with a configured beacon at startup.
	Autostart bool `yaml:"autostart"`

	// DebugNotifications posts a local alert for every transition.
	DebugNotifications bool `yaml:"debug_notifications"`

	// NotificationClient is the UI client id debug alerts are addressed to.
	NotificationClient string `yaml:"notification_client"`
}

// Load builds the configuration from defaults, then the YAML file at path,
// then GRAYLOGIC_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{ID: "site-001", Name: "Gray Logic"},
		Database: DatabaseConfig{
			Path:        "./data/presence.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		StatusStore: StatusStoreConfig{
			Backend: StatusBackendSQLite,
			Redis:   RedisConfig{Addr: "localhost:6379", Key: "graylogic:region_status"},
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "graylogic-presence"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Enabled:  true,
			Host:     "0.0.0.0",
			Port:     8090,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Presence: PresenceConfig{
			ScannerID:          "ble",
			MaxRegions:         maxPlatformRegions,
			SubscriberBuffer:   16,
			IngressBuffer:      64,
			Autostart:          true,
			NotificationClient: "debug",
		},
	}
}

// envBinding maps one environment variable onto a config field. Values that
// do not parse are ignored.
type envBinding struct {
	name  string
	apply func(v string)
}

func stringVar(dst *string) func(string) {
	return func(v string) { *dst = v }
}

func intVar(dst *int) func(string) {
	return func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func boolVar(dst *bool) func(string) {
	return func(v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envBindings(cfg *Config) []envBinding {
	return []envBinding{
		{"GRAYLOGIC_SITE_ID", stringVar(&cfg.Site.ID)},
		{"GRAYLOGIC_DATABASE_PATH", stringVar(&cfg.Database.Path)},
		{"GRAYLOGIC_STATUS_BACKEND", stringVar(&cfg.StatusStore.Backend)},
		{"GRAYLOGIC_REDIS_ADDR", stringVar(&cfg.StatusStore.Redis.Addr)},
		{"GRAYLOGIC_REDIS_PASSWORD", stringVar(&cfg.StatusStore.Redis.Password)},
		{"GRAYLOGIC_MQTT_HOST", stringVar(&cfg.MQTT.Broker.Host)},
		{"GRAYLOGIC_MQTT_PORT", intVar(&cfg.MQTT.Broker.Port)},
		{"GRAYLOGIC_MQTT_USERNAME", stringVar(&cfg.MQTT.Auth.Username)},
		{"GRAYLOGIC_MQTT_PASSWORD", stringVar(&cfg.MQTT.Auth.Password)},
		{"GRAYLOGIC_API_HOST", stringVar(&cfg.API.Host)},
		{"GRAYLOGIC_API_PORT", intVar(&cfg.API.Port)},
		{"GRAYLOGIC_INFLUXDB_URL", stringVar(&cfg.InfluxDB.URL)},
		{"GRAYLOGIC_INFLUXDB_TOKEN", stringVar(&cfg.InfluxDB.Token)},
		{"GRAYLOGIC_LOG_LEVEL", stringVar(&cfg.Logging.Level)},
		{"GRAYLOGIC_JWT_SECRET", stringVar(&cfg.Security.JWT.Secret)},
		{"GRAYLOGIC_PRESENCE_DEBUG_NOTIFICATIONS", boolVar(&cfg.Presence.DebugNotifications)},
	}
}

func applyEnvOverrides(cfg *Config) {
	for _, b := range envBindings(cfg) {
		if v, ok := os.LookupEnv(b.name); ok && v != "" {
			b.apply(v)
		}
	}
}

const minJWTSecretLength = 32

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")

	switch c.StatusStore.Backend {
	case StatusBackendSQLite:
	case StatusBackendRedis:
		check(c.StatusStore.Redis.Addr != "", "status_store.redis.addr is required for the redis backend")
		check(c.StatusStore.Redis.Key != "", "status_store.redis.key is required for the redis backend")
	default:
		check(false, "status_store.backend %q must be sqlite or redis", c.StatusStore.Backend)
	}

	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(!c.API.Enabled || (c.API.Port >= 1 && c.API.Port <= 65535), "api.port must be between 1 and 65535")
	check(c.Security.JWT.Secret == "" || len(c.Security.JWT.Secret) >= minJWTSecretLength,
		"security.jwt.secret must be at least %d characters", minJWTSecretLength)

	p := c.Presence
	check(p.ScannerID != "", "presence.scanner_id is required")
	check(p.MaxRegions >= 1 && p.MaxRegions <= maxPlatformRegions,
		"presence.max_regions must be between 1 and %d", maxPlatformRegions)
	check(p.SubscriberBuffer >= 1, "presence.subscriber_buffer must be positive")
	check(p.IngressBuffer >= 1, "presence.ingress_buffer must be positive")
	check(!p.DebugNotifications || p.NotificationClient != "",
		"presence.notification_client is required when debug_notifications is set")

	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ReadTimeout also bounds reading request headers.
func (t APITimeoutConfig) ReadTimeout() time.Duration { return seconds(t.Read) }

func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }

func (t APITimeoutConfig) IdleTimeout() time.Duration { return seconds(t.Idle) }
