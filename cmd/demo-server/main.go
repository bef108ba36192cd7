package main

import (
	"log/slog"
	"net/http"
	"os"

	miniredis "github.com/alicebob/miniredis/v2"

	redisAdapter "boardkit/adapters/redis"
	"boardkit/api/httpapi"
	"boardkit/boards"
	"boardkit/engine"
	"boardkit/realtime"
)

// demo-server runs the full API against an embedded Redis, so the Redis
// adapter can be tried without any infrastructure. Nothing survives a restart.
func main() {
	// Use readable text logging for development/demo
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	mr, err := miniredis.Run()
	if err != nil {
		logger.Error("failed to start embedded redis", "error", err)
		os.Exit(1)
	}
	defer mr.Close()

	cfg := redisAdapter.DefaultConfig()
	cfg.Addr = mr.Addr()
	store, err := redisAdapter.New(cfg)
	if err != nil {
		logger.Error("failed to connect to embedded redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	hub := realtime.NewHub()
	svc := boards.New(
		boards.WithStore(store),
		boards.WithRealtime(hub),
		boards.WithDispatchMode(engine.DispatchAsync),
		boards.WithLogger(logger),
	)
	defer svc.Close()

	handler := httpapi.NewMux(svc, hub, httpapi.Options{
		AllowCORSOrigin: "*",
		Logger:          logger,
	})

	logger.Info("starting demo server on :8080", "redis", mr.Addr())

	if err := http.ListenAndServe(":8080", handler); err != nil {
		logger.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
