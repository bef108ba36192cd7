// Package boards assembles a ready-to-use BoardService from functional options.
package boards

import (
	"context"
	"log/slog"

	mem "boardkit/adapters/memory"
	"boardkit/core"
	"boardkit/engine"
	"boardkit/integrations/webhook"
	"boardkit/realtime"
)

// Option configures the board service builder.
type Option func(*config)

type config struct {
	store    engine.Store
	mode     engine.DispatchMode
	hub      *realtime.Hub
	webhooks *webhook.Sink
	opts     engine.Options
}

// WithStore sets the persistence adapter.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all board events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhooks forwards all board events to a webhook sink.
func WithWebhooks(s *webhook.Sink) Option { return func(c *config) { c.webhooks = s } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.opts.Logger = l } }

// WithMasterToken gates board creation behind token. An empty token leaves
// creation gated but impossible, which is what a misconfigured deployment should get.
func WithMasterToken(token string) Option {
	return func(c *config) {
		c.opts.RequireMasterToken = true
		c.opts.MasterToken = token
	}
}

// WithTokenSource replaces the board token generator.
func WithTokenSource(src core.TokenSource) Option { return func(c *config) { c.opts.Tokens = src } }

// New builds a configured BoardService. If not provided, defaults are used:
//   - store: in-memory
//   - dispatch: async
//   - board creation: open to anyone
func New(opts ...Option) *engine.BoardService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		cfg.store = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewBoardService(cfg.store, bus, cfg.opts)
	if cfg.hub != nil {
		hub := cfg.hub
		bus.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	}
	if cfg.webhooks != nil {
		bus.SubscribeAll(cfg.webhooks.OnEvent)
	}
	return svc
}
