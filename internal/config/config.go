// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// KV backends.
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`
	SiteURL string `env:"SITE_URL" envDefault:"https://dinelportal.dk"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Key-value store
	KVBackend string `env:"KV_BACKEND" envDefault:"redis"`
	RedisURL  string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	// Empty BadgerDir runs badger in memory.
	BadgerDir string `env:"BADGER_DIR"`

	// Click archive (PostgreSQL), optional
	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Admin dashboard bearer secret
	AdminSecret string `env:"ADMIN_SECRET"`

	// Click rate limiting (fixed window per IP)
	ClickRateLimit  int64         `env:"CLICK_RATE_LIMIT" envDefault:"100"`
	ClickRateWindow time.Duration `env:"CLICK_RATE_WINDOW" envDefault:"60s"`

	// Market data upstream (Energi Data Service)
	ProductionAPIURL   string        `env:"PRODUCTION_API_URL" envDefault:"https://api.energidataservice.dk/dataset/ProductionConsumptionSettlement"`
	ProductionCacheTTL time.Duration `env:"PRODUCTION_CACHE_TTL" envDefault:"24h"`

	// Metering data upstream (Eloverblik)
	EloverblikAPIURL            string `env:"ELOVERBLIK_API_URL" envDefault:"https://api.eloverblik.dk"`
	EloverblikThirdPartyRefresh string `env:"ELOVERBLIK_THIRDPARTY_REFRESH_TOKEN"`

	// Per-IP requests per minute on the consumption proxies
	ProxyRateLimit int `env:"PROXY_RATE_LIMIT" envDefault:"30"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ArchiveConfigured reports whether the click archive pipeline can run.
// The archive consumes a Redis stream, so it requires the redis backend.
func (c *Config) ArchiveConfigured() bool {
	return c.ArchiveEnabled && c.DatabaseURL != "" && c.KVBackend == BackendRedis
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.KVBackend {
	case BackendRedis, BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("KV_BACKEND must be %q or %q, got %q", BackendRedis, BackendBadger, c.KVBackend))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}

	if c.ClickRateLimit <= 0 {
		errs = append(errs, errors.New("CLICK_RATE_LIMIT must be positive"))
	}
	if c.ClickRateWindow <= 0 {
		errs = append(errs, errors.New("CLICK_RATE_WINDOW must be positive"))
	}
	if c.ProductionCacheTTL <= 0 {
		errs = append(errs, errors.New("PRODUCTION_CACHE_TTL must be positive"))
	}
	if c.ProxyRateLimit <= 0 {
		errs = append(errs, errors.New("PROXY_RATE_LIMIT must be positive"))
	}
	if c.ArchiveEnabled && c.DatabaseURL == "" {
		errs = append(errs, errors.New("ARCHIVE_ENABLED requires DATABASE_URL"))
	}

	return errors.Join(errs...)
}

// LoadDotEnv loads variables from a .env file in the working directory.
// Variables already set in the environment take precedence. A missing file
// is reported as false without error.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
