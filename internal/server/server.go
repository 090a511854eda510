// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides which URL patterns map to
// which handler functions, what middleware runs on which routes, and how
// the server starts and stops gracefully. OpenServices is the composition
// root for everything below HTTP.
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

	"github.com/sakif/prompt-library/internal/auth"
	"github.com/sakif/prompt-library/internal/config"
	"github.com/sakif/prompt-library/internal/handler"
	"github.com/sakif/prompt-library/internal/middleware"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database and the search index through svc. Start
// closes both after the HTTP server has drained.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	svc    *Services
}

// New builds the services from the manager's current configuration and
// mounts the routes. When the configuration came from a file, edits to its
// category table are applied without a restart.
func New(cm *config.Manager, logger *slog.Logger) (*Server, error) {
	cfg := cm.Get()

	svc, err := OpenServices(cfg, logger)
	if err != nil {
		return nil, err
	}

	cm.OnChange(func(next *config.Config) {
		svc.Prompts.SetCategories(next.Categories)
		logger.Info("category table reloaded", slog.Int("categories", len(next.Categories)))
	})
	if cm.ConfigFile() != "" {
		cm.WatchConfig()
	}

	return newServer(cfg, svc, logger), nil
}

func newServer(cfg *config.Config, svc *Services, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		svc:    svc,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                      → liveness probe
// POST   /auth/register                → create account
// GET    /auth/register                → username/email availability
// POST   /auth/login, /auth/logout     → session cookie
// GET    /auth/github/login, /callback → GitHub OAuth (when configured)
// /api/...                              → everything else, behind RequireAuth
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the request logger can include it; Recoverer
// sits inside the logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	health := handler.NewHealthHandler(s.svc.DB, s.logger)
	authHandler := handler.NewAuthHandler(s.svc.Auth, s.svc.GitHub, s.svc.Tokens, s.logger)
	promptHandler := handler.NewPromptHandler(s.svc.Prompts, s.logger)
	userHandler := handler.NewUserHandler(s.svc.Users, s.svc.Transfer, s.logger)
	optimizeHandler := handler.NewOptimizeHandler(s.svc.Optimize, s.logger)

	s.router.Get("/healthz", health.HandleHealth)

	// === Public auth routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/register", authHandler.HandleAvailability)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		if authHandler.GitHubEnabled() {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// === Protected API routes ===
	// RequireAuth validates the JWT and puts the user ID in the context;
	// handlers pass it to the services, which enforce ownership.
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.svc.Tokens))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", promptHandler.HandleList)
			r.Post("/", promptHandler.HandleCreate)
			r.Get("/{id}", promptHandler.HandleGet)
			r.Put("/{id}", promptHandler.HandleUpdate)
			r.Delete("/{id}", promptHandler.HandleDelete)
			r.Post("/{id}/pin", promptHandler.HandleTogglePin)
			r.Get("/{id}/versions", promptHandler.HandleVersions)
			r.Post("/{id}/rollback", promptHandler.HandleRollback)
		})

		r.Get("/tags", promptHandler.HandleTags)
		r.Get("/sources", promptHandler.HandleSources)
		r.Get("/categories", promptHandler.HandleCategories)
		r.Get("/categories/{name}", promptHandler.HandleCategoryPrompts)
		r.Get("/dashboard/stats", promptHandler.HandleDashboardStats)

		r.Route("/user", func(r chi.Router) {
			r.Get("/stats", userHandler.HandleStats)
			r.Get("/activity", userHandler.HandleActivity)
			r.Put("/profile", userHandler.HandleUpdateProfile)
			r.Put("/password", userHandler.HandleChangePassword)
			r.Get("/export", userHandler.HandleExport)
			r.Post("/import", userHandler.HandleImport)
			r.Delete("/", userHandler.HandleDeleteAccount)
		})

		r.Post("/ai/optimize", optimizeHandler.HandleOptimize)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the search index and the database
func (s *Server) Start() error {
	defer func() {
		if err := s.svc.Close(); err != nil {
			s.logger.Error("closing storage", slog.String("error", err.Error()))
		}
	}()

	// WriteTimeout leaves room for the optimizer's retries.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("url", s.cfg.Server.BaseURL),
			slog.String("database", s.cfg.Database.Path),
			slog.Bool("github_login", s.svc.GitHub != nil),
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
