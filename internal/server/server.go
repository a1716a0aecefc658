// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: it is the one place that knows
// every concrete type.
//
//	config.Config → db.Open → sqlstore.Store
//	                             ↓
//	               ProductService, LinkService
//	                             ↓
//	               DashboardHandler, LinkHandler → chi routes
//
// Everything below it takes interfaces, so each layer is tested on its own.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/dealbot/internal/auth"
	"github.com/sakif/dealbot/internal/config"
	"github.com/sakif/dealbot/internal/db"
	"github.com/sakif/dealbot/internal/handler"
	"github.com/sakif/dealbot/internal/middleware"
	"github.com/sakif/dealbot/internal/repository/sqlstore"
	"github.com/sakif/dealbot/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the connection pool. Start closes it after the HTTP
// server has drained, so no in-flight request loses its connection.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *db.Provider
}

// New opens the database, applies migrations when configured to, and
// wires the routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	provider, err := db.Open(ctx, cfg.DB())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, provider, logger); err != nil {
			provider.Close()
			return nil, err
		}
	}

	s, err := NewWithProvider(cfg, provider, logger)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return s, nil
}

// NewWithProvider wires the routes around an already opened provider.
// The Server takes ownership of provider.
func NewWithProvider(cfg config.Config, provider *db.Provider, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     provider,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /                          → service info + best-effort stats
// GET  /d/{token}                 → magic link entry (sets session cookie)
// GET  /api/dashboard?phone=      → dashboard by phone number
// GET  /api/products/{id}         → product detail + price history
// GET  /api/session               → dashboard of the session user        [session]
// POST /api/products/{id}/target  → change target price                  [session]
// POST /api/products/{id}/delete  → stop tracking                        [session]
// POST /api/generate-link         → issue a magic link for a phone       [api key]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, so the logger can print it
// 2. RealIP, so logs show the client rather than the proxy
// 3. Logger
// 4. Recoverer, which turns a panic into a 500 instead of a dead process
func (s *Server) setupRoutes() error {
	sessions, err := auth.NewSessionTokens(s.config.SessionSecret)
	if err != nil {
		return err
	}
	apiKey, err := auth.NewAPIKey(s.config.LinkAPIKeyHash)
	if err != nil {
		return err
	}
	if !apiKey.Enabled() {
		s.logger.Warn("LINK_API_KEY_HASH not set, /api/generate-link is open")
	}
	if s.config.SessionSecretGenerated {
		s.logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	store := sqlstore.New(s.db)
	productService := service.NewProductService(store, store, s.logger)
	linkService := service.NewLinkService(store, store, store, s.config.DashboardURL, s.logger)

	dashboardHandler := handler.NewDashboardHandler(productService, handler.WhatsApp{
		Number:      s.config.WhatsAppNumber,
		SandboxJoin: s.config.SandboxJoin,
	}, s.logger)
	linkHandler := handler.NewLinkHandler(linkService, sessions, s.config.SecureCookies(), s.logger)

	s.router.Get("/", dashboardHandler.HandleLanding)
	s.router.Get("/d/{token}", linkHandler.HandleOpen)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", dashboardHandler.HandleDashboard)
		r.Get("/products/{id}", dashboardHandler.HandleDetail)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(sessions))
			r.Get("/session", dashboardHandler.HandleSession)
			r.Post("/products/{id}/target", dashboardHandler.HandleTarget)
			r.Post("/products/{id}/delete", dashboardHandler.HandleDelete)
		})

		r.With(auth.RequireAPIKey(apiKey)).Post("/generate-link", linkHandler.HandleGenerate)
	})

	return nil
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or a
// listener error.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the connection pool
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.DashboardURL),
			slog.String("backend", s.db.Dialect().Name()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the connection pool.
func (s *Server) Close() error {
	return s.db.Close()
}
