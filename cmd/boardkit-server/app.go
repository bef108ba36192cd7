package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"boardkit/adapters/jsonfile"
	mem "boardkit/adapters/memory"
	redisAdapter "boardkit/adapters/redis"
	sqlxAdapter "boardkit/adapters/sqlx"
	"boardkit/api/httpapi"
	"boardkit/boards"
	"boardkit/config"
	"boardkit/engine"
	"boardkit/integrations/webhook"
	"boardkit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Store   engine.Store
	Service *engine.BoardService
	Handler http.Handler
	Server  *http.Server
}

// Close releases the service, the hub and the store connection.
func (a *App) Close() error {
	a.Service.Close()
	if a.Hub != nil {
		a.Hub.Close()
	}
	if c, ok := a.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg, os.Stdout, os.Stderr)
}

// provideHub returns nil when the event stream is disabled.
func provideHub(cfg *config.Config) *realtime.Hub {
	if !cfg.Events.Realtime {
		return nil
	}
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Store, error) {
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("storage ready", "adapter", cfg.Storage.Adapter)
	return store, nil
}

func provideService(cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, store engine.Store) *engine.BoardService {
	mode := engine.DispatchAsync
	if cfg.Events.Dispatch == "sync" {
		mode = engine.DispatchSync
	}
	opts := []boards.Option{
		boards.WithStore(store),
		boards.WithDispatchMode(mode),
		boards.WithLogger(logger),
	}
	if hub != nil {
		opts = append(opts, boards.WithRealtime(hub))
	}
	if cfg.Security.RequireMasterToken {
		opts = append(opts, boards.WithMasterToken(cfg.Security.MasterToken))
	}
	if len(cfg.Events.Webhooks) > 0 {
		sink := webhook.New(cfg.Events.Webhooks,
			webhook.WithClient(&http.Client{Timeout: cfg.Events.WebhookTimeout}),
			webhook.WithLogger(logger))
		opts = append(opts, boards.WithWebhooks(sink))
	}
	return boards.New(opts...)
}

func provideHandler(cfg *config.Config, logger *slog.Logger, svc *engine.BoardService, hub *realtime.Hub) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := stdout
	if cfg.Logging.Output == "stderr" {
		out = stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter selected by configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Adapter {
	case config.AdapterMemory:
		return mem.New(), nil
	case config.AdapterRedis:
		return redisAdapter.New(cfg.Storage.Redis)
	case config.AdapterSQL:
		return sqlxAdapter.New(cfg.Storage.SQL)
	case config.AdapterFile:
		return jsonfile.New(cfg.Storage.File)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
