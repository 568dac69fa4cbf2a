// Package server assembles the HTTP API: routes, middleware, and the
// websocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yieldbet/marketd/internal/server/handler"
	"github.com/yieldbet/marketd/internal/server/middleware"
	"github.com/yieldbet/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Bets    *handler.BetHandler
	Sync    *handler.SyncHandler
}

// Server is the HTTP + websocket API for marketd.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// (CORS, logging, auth) applied. wsHub may be nil when Redis is not
// configured.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check, outside auth.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market reads.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/bets", handlers.Markets.ListMarketBets)

	// Bets.
	mux.HandleFunc("POST /api/bets/notify", handlers.Bets.NotifyBetPlaced)
	mux.HandleFunc("GET /api/users/{id}/bets", handlers.Bets.ListUserBets)

	// Sync control and observability.
	mux.HandleFunc("POST /api/sync/trigger", handlers.Sync.TriggerSync)
	mux.HandleFunc("GET /api/sync/status", handlers.Sync.SchedulerStatus)
	mux.HandleFunc("GET /api/sync/event-stats", handlers.Sync.EventStats)
	mux.HandleFunc("GET /api/sync/realtime-status", handlers.Sync.RealtimeStatus)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens for requests and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
