package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	wsadapter "boardkit/adapters/websocket"
	"boardkit/engine"
	"boardkit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client address.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Logger receives one line per request. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewMux builds an http.Handler exposing the leaderboard REST API and event stream.
// Routes:
//   - GET  {prefix}/                          liveness
//   - POST {prefix}/                          store round trip
//   - GET  {prefix}/healthz
//   - POST {prefix}/board                     create a board
//   - GET  {prefix}/board?board=&offset=&size=
//   - GET  {prefix}/score?board=&player=
//   - PUT  {prefix}/score?board=&player=      body: JSON number
//   - WS   {prefix}/ws?board=
func NewMux(svc *engine.BoardService, hub *realtime.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api := r
	if prefix := strings.TrimSuffix(opts.PathPrefix, "/"); prefix != "" {
		api = r.PathPrefix(prefix).Subrouter()
		api.NotFoundHandler = r.NotFoundHandler
		api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	}

	api.HandleFunc("/", h.root).Methods(http.MethodGet)
	api.HandleFunc("/", h.ping).Methods(http.MethodPost)
	api.HandleFunc("/healthz", h.healthCheck).Methods(http.MethodGet)

	api.HandleFunc("/board", h.createBoard).Methods(http.MethodPost)
	api.HandleFunc("/board", h.listScores).Methods(http.MethodGet)
	api.HandleFunc("/score", h.getScore).Methods(http.MethodGet)
	api.HandleFunc("/score", h.submitScore).Methods(http.MethodPut)

	// WebSocket events
	if hub != nil {
		api.Handle("/ws", wsadapter.Handler(hub)).Methods(http.MethodGet)
	}

	var handler http.Handler = r
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return withRequestLog(handler, logger)
}
