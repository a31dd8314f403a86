package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Sandbox    SandboxConfig
	Redis      RedisConfig
	Frameworks FrameworksConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          string   `envconfig:"PORT" default:"8000"`
	Host          string   `envconfig:"HOST" default:"0.0.0.0"`
	DocumentTitle string   `envconfig:"DOCUMENT_TITLE" default:""`
	CORSOrigins   []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SandboxConfig holds sandbox runtime limits.
type SandboxConfig struct {
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	MaxInstances int           `envconfig:"SANDBOX_MAX_INSTANCES" default:"64"`
	QueueSize    int           `envconfig:"SANDBOX_QUEUE_SIZE" default:"1024"`
	IdleTimeout  time.Duration `envconfig:"SANDBOX_IDLE_TIMEOUT" default:"30m"`
}

// RedisConfig holds the optional Redis relay configuration.
type RedisConfig struct {
	Enabled       bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Address       string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	ChannelPrefix string `envconfig:"REDIS_CHANNEL_PREFIX" default:"runner"`
}

// FrameworksConfig locates the framework catalog manifest.
type FrameworksConfig struct {
	Manifest string `envconfig:"FRAMEWORKS_MANIFEST" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Sandbox: SandboxConfig{
			Timeout:      5 * time.Second,
			MaxInstances: 64,
			QueueSize:    1024,
			IdleTimeout:  30 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:       false,
			Address:       "localhost:6379",
			ChannelPrefix: "runner",
		},
	}
}

// Validate reports every setting the server cannot start with
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %q", c.Server.Port))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}
	if c.Sandbox.Timeout <= 0 {
		errs = append(errs, errors.New("SANDBOX_TIMEOUT must be positive"))
	}
	if c.Sandbox.MaxInstances < 0 {
		errs = append(errs, errors.New("SANDBOX_MAX_INSTANCES must not be negative"))
	}
	if c.Sandbox.QueueSize <= 0 {
		errs = append(errs, errors.New("SANDBOX_QUEUE_SIZE must be positive"))
	}
	if c.Sandbox.IdleTimeout < 0 {
		errs = append(errs, errors.New("SANDBOX_IDLE_TIMEOUT must not be negative"))
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when the relay is enabled"))
	}

	return errors.Join(errs...)
}
