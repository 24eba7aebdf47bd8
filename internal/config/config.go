// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// ErrNoAuthMode is returned when no token verification method is configured.
var ErrNoAuthMode = errors.New("one of AUTH_ISSUER_URL, AUTH_JWKS_URL or AUTH_HS256_SECRET is required")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Document store (MongoDB)
	MongoURI          string `env:"MONGO_URI,required,notEmpty"`
	MongoDatabase     string `env:"MONGO_DATABASE" envDefault:"expensync"`
	MongoTransactions bool   `env:"MONGO_TRANSACTIONS" envDefault:"false"`
	MongoMaxPoolSize  uint64 `env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`
	MongoMinPoolSize  uint64 `env:"MONGO_MIN_POOL_SIZE" envDefault:"0"`

	// Redis. Empty keeps broadcast delivery in-process and disables the
	// identity cache and rate limiting.
	RedisURL             string        `env:"REDIS_URL"`
	RedisPoolSize        int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdleConns    int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	RedisPoolTimeout     time.Duration `env:"REDIS_POOL_TIMEOUT" envDefault:"4s"`
	RedisConnMaxIdleTime time.Duration `env:"REDIS_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	BroadcastChannel     string        `env:"BROADCAST_CHANNEL" envDefault:"expensync:broadcast"`
	BroadcastBuffer      int           `env:"BROADCAST_BUFFER" envDefault:"64"`

	// Identity tokens. Any combination may be set; tokens are tried in
	// order OIDC discovery, JWKS, HS256.
	AuthIssuerURL   string `env:"AUTH_ISSUER_URL"`
	AuthAudience    string `env:"AUTH_AUDIENCE"`
	AuthJWKSURL     string `env:"AUTH_JWKS_URL"`
	AuthHS256Secret string `env:"AUTH_HS256_SECRET"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPM     int  `env:"RATE_LIMIT_RPM" envDefault:"120"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"30"`
	RateLimitIPRPS   int  `env:"RATE_LIMIT_IP_RPS" envDefault:"20"`
	RateLimitIPBurst int  `env:"RATE_LIMIT_IP_BURST" envDefault:"40"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Metrics exposes /metrics when true.
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// RedisEnabled reports whether a Redis URL is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.AuthIssuerURL == "" && c.AuthJWKSURL == "" && c.AuthHS256Secret == "" {
		errs = append(errs, ErrNoAuthMode)
	}
	if c.IsProduction() && c.AuthHS256Secret != "" && len(c.AuthHS256Secret) < 32 {
		errs = append(errs, errors.New("AUTH_HS256_SECRET must be at least 32 bytes in production"))
	}
	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT %d out of range", c.AppPort))
	}
	if c.MongoDatabase == "" {
		errs = append(errs, errors.New("MONGO_DATABASE must not be empty"))
	}
	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
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
