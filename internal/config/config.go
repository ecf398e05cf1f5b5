// Package config loads service configuration from environment variables,
// applies defaults and validates the result on startup so misconfiguration
// fails fast.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/qareports/internal/persist"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Cache    CacheConfig
	Remote   RemoteConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-upload requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// UploadConfig holds workbook ingestion settings.
type UploadConfig struct {
	// MaxFileSize accepts plain bytes or a KB/MB/GB suffix (default: 32MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"32MB"`

	// MaxConcurrent is the number of workbooks parsed at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an upload waits for a parse slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds parsing and classifying one upload (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`

	// SurfaceBodies lists part numbers known to be surface bodies
	SurfaceBodies []string `env:"SURFACE_BODY_PARTS"`
}

// CacheConfig selects the local persistence tier.
type CacheConfig struct {
	// Driver is sqlite, postgres or memory (default: sqlite)
	Driver string `env:"CACHE_DRIVER" default:"sqlite"`

	// Path is the sqlite database file (default: data/qareports.db)
	Path string `env:"CACHE_PATH" default:"data/qareports.db"`

	// URL is the postgres connection string, required for the postgres driver
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`
}

// DSN returns the connection string for the selected driver.
func (c CacheConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

// RemoteConfig holds the S3-compatible remote store settings. Remote sync
// runs only when enabled and both endpoint and key are set.
type RemoteConfig struct {
	Enabled   bool          `env:"REMOTE_SYNC_ENABLED" default:"false"`
	Endpoint  string        `env:"REMOTE_ENDPOINT"`
	Key       string        `env:"REMOTE_ACCESS_KEY" envAlt:"AWS_ACCESS_KEY_ID"`
	Secret    string        `env:"REMOTE_SECRET_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
	Bucket    string        `env:"REMOTE_BUCKET" default:"qa-reports"`
	Region    string        `env:"REMOTE_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
	PathStyle bool          `env:"REMOTE_PATH_STYLE" default:"true"`
	Timeout   time.Duration `env:"REMOTE_TIMEOUT" default:"30s"`

	// RetryInterval is how often a failed upload is retried (default: 30s)
	RetryInterval time.Duration `env:"REMOTE_RETRY_INTERVAL" default:"30s"`
}

// Persist converts to the value passed to the persistence layer.
func (c RemoteConfig) Persist() persist.RemoteConfig {
	return persist.RemoteConfig{
		Endpoint:  c.Endpoint,
		Key:       c.Key,
		Secret:    c.Secret,
		Bucket:    c.Bucket,
		Region:    c.Region,
		Enabled:   c.Enabled,
		PathStyle: c.PathStyle,
		Timeout:   c.Timeout,
	}
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default limit per client (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects /api requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
