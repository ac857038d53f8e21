// Package config loads server configuration from environment variables and
// an optional JSON file. Environment variables take precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Cache    CacheConfig    `json:"cache"`
	Tracing  TracingConfig  `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
	// Allowed CORS origins, comma-separated.
	AllowedOrigins string `json:"allowed_origins"`
}

// DatabaseConfig holds SQLite settings. Path ":memory:" runs without a file.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	// Secret signs and verifies access tokens. Required.
	Secret string `json:"secret"`
	// TokenTTL bounds the lifetime of tokens issued by this server.
	TokenTTL time.Duration `json:"token_ttl"`
}

// CacheConfig holds the optional Redis offer cache settings. When disabled
// the catalog serves every read from the database.
type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
	Environment string `json:"environment"`
}

// Load builds the configuration from defaults, an optional JSON file, and
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "",
			AllowedOrigins: "*",
		},
		Database: DatabaseConfig{
			Path: "./store.db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
		},
		Tracing: TracingConfig{
			ServiceName: "store-engine",
			Environment: "development",
		},
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.Server.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	setString(&cfg.Auth.Secret, "AUTH_SECRET")
	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}
	setBool(&cfg.Cache.Enabled, "CACHE_ENABLED")
	setString(&cfg.Cache.Addr, "CACHE_ADDR")
	setString(&cfg.Cache.Password, "CACHE_PASSWORD")
	if v := os.Getenv("CACHE_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = n
		}
	}
	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setString(&cfg.Tracing.ServiceName, "TRACING_SERVICE_NAME")
	setString(&cfg.Tracing.Environment, "TRACING_ENVIRONMENT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required (set AUTH_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache addr is required when the cache is enabled")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
