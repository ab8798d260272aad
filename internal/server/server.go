// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer for the inbound HTTP surface. It decides
// which URL patterns map to which handler functions, what middleware runs,
// and how the listener starts and stops.
//
// Everything the routes need (the link service) is built by cmd/shamebot and
// passed in. The server owns no database handle and no Discord session: the
// same process also runs the bot and the scheduler, and main closes those.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/shamebot/internal/auth"
	"github.com/sakif/shamebot/internal/handler"
	"github.com/sakif/shamebot/internal/middleware"
)

// shutdownTimeout bounds how long in-flight requests get after the context ends.
const shutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port int
	// WebhookSecret, when set, makes /webhook reject deliveries that are
	// not signed with it (Todoist signs with the app's client secret).
	WebhookSecret string
}

// Server is the HTTP listener for /connect, /auth and /webhook.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New creates a Server and registers its routes.
func New(cfg Config, link handler.Linker, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(handler.NewLinkHandler(link, logger))
	return s
}

// Handler exposes the router (tests drive it through httptest).
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST /connect  → Adaptive Card with a Todoist authorize URL
// GET  /auth     → OAuth redirect target
// POST /webhook  → Todoist event delivery (signature-checked when configured)
// GET  /healthz  → liveness
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes(link *handler.LinkHandler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)
	s.router.Post("/connect", link.HandleConnect)
	s.router.Get("/auth", link.HandleAuth)

	if s.config.WebhookSecret != "" {
		s.router.With(auth.VerifyWebhook(s.config.WebhookSecret)).Post("/webhook", link.HandleWebhook)
	} else {
		s.router.Post("/webhook", link.HandleWebhook)
	}
}

// Start serves until ctx is done, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
//
// The signal handling lives in main (signal.NotifyContext), so the bot, the
// scheduler and the server all stop on the same cancellation.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", slog.Int("port", s.config.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listening: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("http server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.logger.Info("http server stopped gracefully")
	}
	return nil
}
