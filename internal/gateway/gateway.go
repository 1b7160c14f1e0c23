// ABOUTME: Gateway orchestrator that wires the store, presence registry, and dispatch service
// ABOUTME: Owns the HTTP server lifecycle and implements the push side of message delivery

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/courier/internal/auth"
	"github.com/2389/courier/internal/config"
	"github.com/2389/courier/internal/dispatch"
	"github.com/2389/courier/internal/metrics"
	"github.com/2389/courier/internal/presence"
	"github.com/2389/courier/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Gateway coordinates the courier server components. It serves the REST API
// and WebSocket endpoint over a single HTTP listener and pushes stored
// messages to the receiver's live connections.
type Gateway struct {
	config     *config.Config
	store      store.Store
	registry   *presence.Registry
	dispatch   *dispatch.Service
	metrics    *metrics.Metrics
	verifier   auth.TokenVerifier
	limiters   *limiterPool
	upgrader   websocket.Upgrader
	httpServer *http.Server
	logger     *slog.Logger
}

// New constructs a Gateway from config. The store is opened here; callers
// own the lifecycle through Run or Shutdown.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path, cfg.Limits.MaxMessageBytes)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	g := &Gateway{
		config:   cfg,
		store:    st,
		registry: presence.NewRegistry(logger),
		metrics:  metrics.New(),
		verifier: auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		limiters: newLimiterPool(cfg.Limits.SendRPS, cfg.Limits.SendBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With("component", "gateway"),
	}
	g.dispatch = dispatch.NewService(st, g, logger)

	g.httpServer = &http.Server{
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Push delivers a stored message to every live connection of userID.
// Delivery is best effort; outcomes feed metrics and logs only.
func (g *Gateway) Push(userID string, msg *store.Message) {
	delivered, dropped := g.registry.Broadcast(userID, msg)
	g.metrics.PushDelivered.Add(float64(delivered))
	g.metrics.PushDropped.Add(float64(dropped))
	if dropped > 0 {
		g.logger.Warn("dropped push to saturated connections",
			"user_id", userID, "message_id", msg.ID, "dropped", dropped)
	}
	g.logger.Debug("pushed message",
		"user_id", userID, "message_id", msg.ID, "delivered", delivered)
}

// Run serves HTTP until ctx is canceled or the server fails, then shuts
// down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already
// canceled by the time shutdown starts.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, closes all live connections, and closes
// the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("HTTP shutdown: %w", err)
	}

	g.registry.Close()
	g.syncPresenceGauges()

	if err := g.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	g.logger.Info("shutdown complete")
	return firstErr
}

func (g *Gateway) syncPresenceGauges() {
	conns, users := g.registry.Counts()
	g.metrics.Connections.Set(float64(conns))
	g.metrics.OnlineUsers.Set(float64(users))
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
