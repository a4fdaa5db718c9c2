package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for LockerHub Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
// The reconnect delay starts at InitialDelay and doubles on each
// consecutive failure up to MaxDelay.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
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

// TelemetryConfig contains InfluxDB connection settings for heartbeat telemetry.
type TelemetryConfig struct {
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

// EngineConfig contains locker-assignment engine settings.
//
// Durations are expressed in base units (hours, seconds, milliseconds)
// as plain integers; use the Get* helpers for time.Duration values.
type EngineConfig struct {
	// AssignmentTTLHours is how long an automatic RFID assignment stays
	// valid before the expiry reconciler revokes it.
	AssignmentTTLHours int `yaml:"assignment_ttl_hours"`

	// OfflineAfterSeconds is the heartbeat silence threshold after which
	// a locker is flipped offline.
	OfflineAfterSeconds int `yaml:"offline_after_seconds"`

	// ExpirySweepSeconds is the interval between expiry reconciler runs.
	ExpirySweepSeconds int `yaml:"expiry_sweep_seconds"`

	// OfflineSweepSeconds is the interval between offline detector runs.
	OfflineSweepSeconds int `yaml:"offline_sweep_seconds"`

	// UnlockDelayOwnMS is the pre-publish delay for a scan at the
	// member's own locker bank.
	UnlockDelayOwnMS int `yaml:"unlock_delay_own_ms"`

	// UnlockDelayRemoteMS is the pre-publish delay for a scan at a
	// remote reader in the same group.
	UnlockDelayRemoteMS int `yaml:"unlock_delay_remote_ms"`

	// MaxPayloadBytes is the inbound message size ceiling. Larger
	// payloads are discarded before JSON decoding.
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LOCKERHUB_SECTION_KEY
// For example: LOCKERHUB_DATABASE_PATH, LOCKERHUB_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "LockerHub",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/lockerhub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lockerhub-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
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
		Engine: EngineConfig{
			AssignmentTTLHours:  24,
			OfflineAfterSeconds: 90,
			ExpirySweepSeconds:  60,
			OfflineSweepSeconds: 30,
			UnlockDelayOwnMS:    0,
			UnlockDelayRemoteMS: 1500,
			MaxPayloadBytes:     4096,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LOCKERHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("LOCKERHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("LOCKERHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LOCKERHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LOCKERHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("LOCKERHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Telemetry
	if v := os.Getenv("LOCKERHUB_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be below initial_delay")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Engine validation
	if c.Engine.AssignmentTTLHours < 1 {
		errs = append(errs, "engine.assignment_ttl_hours must be at least 1")
	}
	if c.Engine.OfflineAfterSeconds < 1 {
		errs = append(errs, "engine.offline_after_seconds must be at least 1")
	}
	if c.Engine.ExpirySweepSeconds < 1 {
		errs = append(errs, "engine.expiry_sweep_seconds must be at least 1")
	}
	if c.Engine.OfflineSweepSeconds < 1 {
		errs = append(errs, "engine.offline_sweep_seconds must be at least 1")
	}
	if c.Engine.MaxPayloadBytes < 1 {
		errs = append(errs, "engine.max_payload_bytes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// AssignmentTTL returns the automatic assignment lifetime as a Duration.
func (e EngineConfig) AssignmentTTL() time.Duration {
	return time.Duration(e.AssignmentTTLHours) * time.Hour
}

// OfflineAfter returns the heartbeat silence threshold as a Duration.
func (e EngineConfig) OfflineAfter() time.Duration {
	return time.Duration(e.OfflineAfterSeconds) * time.Second
}

// ExpirySweepInterval returns the expiry reconciler interval as a Duration.
func (e EngineConfig) ExpirySweepInterval() time.Duration {
	return time.Duration(e.ExpirySweepSeconds) * time.Second
}

// OfflineSweepInterval returns the offline detector interval as a Duration.
func (e EngineConfig) OfflineSweepInterval() time.Duration {
	return time.Duration(e.OfflineSweepSeconds) * time.Second
}

// UnlockDelayOwn returns the own-bank unlock delay as a Duration.
func (e EngineConfig) UnlockDelayOwn() time.Duration {
	return time.Duration(e.UnlockDelayOwnMS) * time.Millisecond
}

// UnlockDelayRemote returns the remote-reader unlock delay as a Duration.
func (e EngineConfig) UnlockDelayRemote() time.Duration {
	return time.Duration(e.UnlockDelayRemoteMS) * time.Millisecond
}
