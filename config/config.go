package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"boardkit/adapters/jsonfile"
	"boardkit/adapters/redis"
	"boardkit/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage adapters
const (
	AdapterMemory = "memory"
	AdapterRedis  = "redis"
	AdapterSQL    = "sql"
	AdapterFile   = "file"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"BOARDKIT_ENV"`
	Profile     string      `json:"profile" env:"BOARDKIT_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Event delivery
	Events EventsConfig `json:"events"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"BOARDKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"BOARDKIT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"BOARDKIT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"BOARDKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"BOARDKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"BOARDKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"BOARDKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"BOARDKIT_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string          `json:"adapter" env:"BOARDKIT_STORAGE_ADAPTER"`
	Redis   redis.Config    `json:"redis,omitempty"`
	SQL     sqlx.Config     `json:"sql,omitempty"`
	File    jsonfile.Config `json:"file,omitempty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"BOARDKIT_LOG_LEVEL"`
	Format     string            `json:"format" env:"BOARDKIT_LOG_FORMAT"`
	Output     string            `json:"output" env:"BOARDKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"BOARDKIT_LOG_ATTRIBUTES"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	// RequireMasterToken gates board creation behind MasterToken.
	RequireMasterToken bool            `json:"require_master_token" env:"BOARDKIT_SECURITY_REQUIRE_MASTER_TOKEN"`
	MasterToken        string          `json:"master_token,omitempty" env:"BOARDKIT_SECURITY_MASTER_TOKEN"`
	EnableRateLimit    bool            `json:"enable_rate_limit" env:"BOARDKIT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit          RateLimitConfig `json:"rate_limit,omitempty"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"BOARDKIT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"BOARDKIT_SECURITY_RATE_LIMIT_BURST"`
}

// EventsConfig controls how board events leave the service.
type EventsConfig struct {
	// Dispatch is "sync" or "async".
	Dispatch string `json:"dispatch" env:"BOARDKIT_EVENTS_DISPATCH"`
	// Realtime enables the websocket event stream.
	Realtime bool `json:"realtime" env:"BOARDKIT_EVENTS_REALTIME"`
	// Webhooks receive every event as a JSON POST.
	Webhooks       []string      `json:"webhooks,omitempty" env:"BOARDKIT_EVENTS_WEBHOOKS"`
	WebhookTimeout time.Duration `json:"webhook_timeout" env:"BOARDKIT_EVENTS_WEBHOOK_TIMEOUT"`
}

// Load builds the configuration from defaults (or the profile named by
// BOARDKIT_PROFILE), environment variables and *_FILE secrets, then validates it.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if name := os.Getenv("BOARDKIT_PROFILE"); name != "" {
		profile, err := LoadProfile(name)
		if err != nil {
			return nil, err
		}
		cfg = profile
	}
	return finish(cfg)
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file. Environment variables
// override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := loadFromEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.LoadSecretsFromEnv(context.Background()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: AdapterMemory,
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File:    jsonfile.DefaultConfig(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
		},
		Events: EventsConfig{
			Dispatch:       "async",
			Realtime:       true,
			WebhookTimeout: 2 * time.Second,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Events.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("events config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

const redacted = "[REDACTED]"

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = redacted
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if cfg.Storage.Redis.URL != "" {
		cfg.Storage.Redis.URL = redacted
	}
	if cfg.Security.MasterToken != "" {
		cfg.Security.MasterToken = redacted
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
