// Package server exposes the local HTTP + WebSocket API that UIs and
// scripts drive the trading client with.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
	"github.com/soltradehq/soltrade/internal/server/handler"
	"github.com/soltradehq/soltrade/internal/server/middleware"
	"github.com/soltradehq/soltrade/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	ReadOnly    bool   // monitor mode: no order or draft mutation routes
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Orders *handler.OrderHandler
	Drafts *handler.DraftHandler
	Status *handler.StatusHandler
}

// Server is the local HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, auth, logging, CORS) and attaches
// the WebSocket hub. limiter may be nil to disable API rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Order endpoints.
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("GET /api/orders/history", handlers.Orders.ListHistory)
	mux.HandleFunc("GET /api/orders/archive", handlers.Orders.ListArchived)
	mux.HandleFunc("GET /api/drafts", handlers.Drafts.ListDrafts)

	// Mutation routes are absent in read-only (monitor) deployments.
	if !cfg.ReadOnly {
		mux.HandleFunc("POST /api/orders", handlers.Orders.CreateOrder)
		mux.HandleFunc("POST /api/orders/refresh", handlers.Orders.RefreshOrders)
		mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.CancelOrder)

		mux.HandleFunc("POST /api/drafts", handlers.Drafts.CreateDraft)
		mux.HandleFunc("PUT /api/drafts/{id}", handlers.Drafts.UpdateDraft)
		mux.HandleFunc("DELETE /api/drafts/{id}", handlers.Drafts.DeleteDraft)
		mux.HandleFunc("POST /api/drafts/{id}/submit", handlers.Drafts.SubmitDraft)
	}

	// Status and balances.
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/balances/{wallet}", handlers.Status.GetBalances)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, 60, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
