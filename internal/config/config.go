// ABOUTME: Configuration loading and parsing for courier
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete courier configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Presence PresenceConfig `yaml:"presence"`
	Limits   LimitsConfig   `yaml:"limits"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// PresenceConfig holds live-connection timing configuration
type PresenceConfig struct {
	PingInterval time.Duration `yaml:"-"`
	PongTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PingIntervalRaw string `yaml:"ping_interval"`
	PongTimeoutRaw  string `yaml:"pong_timeout"`
}

// LimitsConfig holds resource-protection limits
type LimitsConfig struct {
	// MaxMessageBytes caps the text of a single message. Zero means the
	// default of 4096.
	MaxMessageBytes int `yaml:"max_message_bytes"`

	// SendRPS and SendBurst configure the per-user send rate limiter.
	SendRPS   float64 `yaml:"send_rps"`
	SendBurst int     `yaml:"send_burst"`

	// HistoryPageSize is the default page size for history queries.
	HistoryPageSize int `yaml:"history_page_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults applied by Load when fields are unset.
const (
	DefaultPingInterval    = 30 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultMaxMessageBytes = 4096
	DefaultSendRPS         = 5.0
	DefaultSendBurst       = 10
	DefaultHistoryPage     = 50
	DefaultMetricsPath     = "/metrics"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Presence.PingIntervalRaw != "" {
		cfg.Presence.PingInterval, err = time.ParseDuration(cfg.Presence.PingIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing ping_interval %q: %w", cfg.Presence.PingIntervalRaw, err)
		}
	}

	if cfg.Presence.PongTimeoutRaw != "" {
		cfg.Presence.PongTimeout, err = time.ParseDuration(cfg.Presence.PongTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing pong_timeout %q: %w", cfg.Presence.PongTimeoutRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in zero-valued fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Presence.PingInterval == 0 {
		c.Presence.PingInterval = DefaultPingInterval
	}
	if c.Presence.PongTimeout == 0 {
		c.Presence.PongTimeout = DefaultPongTimeout
	}
	if c.Limits.MaxMessageBytes == 0 {
		c.Limits.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.Limits.SendRPS == 0 {
		c.Limits.SendRPS = DefaultSendRPS
	}
	if c.Limits.SendBurst == 0 {
		c.Limits.SendBurst = DefaultSendBurst
	}
	if c.Limits.HistoryPageSize == 0 {
		c.Limits.HistoryPageSize = DefaultHistoryPage
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.Presence.PongTimeout <= c.Presence.PingInterval {
		return fmt.Errorf("presence.pong_timeout must be greater than presence.ping_interval")
	}

	return nil
}
