package config

import "time"

// Config represents the complete application configuration. Values are
// layered: embedded defaults, then an optional config file, then
// SEARCHBEAM_* environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Search    SearchConfig    `mapstructure:"search"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// UpstreamConfig points at the upstream search API.
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SearchConfig tunes the search coordinator.
type SearchConfig struct {
	// DedupTTL suppresses an identical query re-submitted within the
	// window unless the caller forces a refresh.
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`

	// CacheTTL bounds how long result pages stay in the store cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// PageSize is the number of results per page requested upstream.
	PageSize int `mapstructure:"page_size"`
}

// RetryConfig bounds the upstream retry loop.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// RateLimitConfig configures the admission limiter on write endpoints.
// A zero window disables the limiter (documented override, not a bug).
type RateLimitConfig struct {
	Window          time.Duration `mapstructure:"window"`
	MaxRequests     int           `mapstructure:"max_requests"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
