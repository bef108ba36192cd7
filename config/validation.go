package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

func oneOf(value string, valid ...string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(valid, ", "))
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	if err := oneOf(s.Adapter, AdapterMemory, AdapterRedis, AdapterSQL, AdapterFile); err != nil {
		errs = append(errs, "adapter "+err.Error())
	}

	switch s.Adapter {
	case AdapterRedis:
		if s.Redis.URL == "" && s.Redis.Addr == "" {
			errs = append(errs, "redis config: url or addr is required")
		}
		if s.Redis.URL != "" {
			if _, err := s.Redis.Options(); err != nil {
				errs = append(errs, fmt.Sprintf("redis config: %v", err))
			}
		}
	case AdapterSQL:
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	case AdapterFile:
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	}

	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	if err := oneOf(l.Level, "debug", "info", "warn", "error"); err != nil {
		errs = append(errs, "level "+err.Error())
	}
	if err := oneOf(l.Format, "json", "text"); err != nil {
		errs = append(errs, "format "+err.Error())
	}
	if err := oneOf(l.Output, "stdout", "stderr"); err != nil {
		errs = append(errs, "output "+err.Error())
	}

	return joinErrs(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.RequireMasterToken && strings.TrimSpace(s.MasterToken) == "" {
		errs = append(errs, "master_token is required when require_master_token is set")
	}
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	return joinErrs(errs)
}

// Validate validates event delivery settings.
func (e *EventsConfig) Validate() error {
	var errs []string
	if err := oneOf(e.Dispatch, "sync", "async"); err != nil {
		errs = append(errs, "dispatch "+err.Error())
	}
	for i, hook := range e.Webhooks {
		u, err := url.Parse(hook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhooks[%d] must be an absolute http(s) URL", i))
		}
	}
	if len(e.Webhooks) > 0 && e.WebhookTimeout <= 0 {
		errs = append(errs, "webhook_timeout must be positive")
	}
	return joinErrs(errs)
}
