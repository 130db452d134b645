// Package core provides the API chassis for the irricast engine: a chi
// router with the cross-cutting middleware chain (recovery, timeouts,
// request IDs, logging, CORS), the response envelope, request validation,
// and the health endpoint. Domain handlers register themselves onto /v1 via
// route registrars, keeping core free of handler imports.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"irricast/internal/config"
)

// Server bundles the router with its cross-cutting dependencies so tests can
// inject fakes and environments can differ in configuration only.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars are populated by the application entry point; the
	// indirection avoids import cycles between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// HealthProbes are checked concurrently by GET /health.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes the chassis. Routes are mounted separately via
// MountRoutes so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// MountRoutes registers the global middleware chain, the /v1 group, and the
// health endpoint. Middleware order matters: the recoverer is outermost so
// it catches everything, and the request ID precedes the logger so every
// request line carries one.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.Config.Server.RequestTimeout))
	s.router.Use(RequestIDMiddleware(s.Logger))
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware([]string{"*"}))

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server-held resources. The HTTP listener itself is
// drained by the caller via http.Server.Shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
