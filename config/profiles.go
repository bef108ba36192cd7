package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults for a named deployment profile. The result
// is not validated; environment variables and secrets usually complete it.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch Environment(name) {
	case EnvDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"

	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.Logging.Level = "warn"
		cfg.Logging.Format = "text"
		cfg.Events.Dispatch = "sync"
		cfg.Events.Realtime = false

	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = AdapterRedis
		cfg.Security.RequireMasterToken = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit = RateLimitConfig{RequestsPerMinute: 600, BurstSize: 50}

	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = AdapterRedis
		cfg.Server.CORSOrigin = ""
		cfg.Server.ShutdownTimeout = 15 * time.Second
		cfg.Security.RequireMasterToken = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit = RateLimitConfig{RequestsPerMinute: 300, BurstSize: 30}

	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}
