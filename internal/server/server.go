package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/searchbeam/searchbeam/internal/config"
	"github.com/searchbeam/searchbeam/internal/core/engine"
	apperrors "github.com/searchbeam/searchbeam/internal/errors"
	"github.com/searchbeam/searchbeam/internal/observability"
	"github.com/searchbeam/searchbeam/internal/server/handlers"
	servermw "github.com/searchbeam/searchbeam/internal/server/middleware"
)

// Deps are the collaborators the HTTP surface is wired to.
type Deps struct {
	Search   *handlers.SearchGateway
	Requests *handlers.RequestHandler
	Limiter  *engine.RateLimiter
	Health   *handlers.HealthManager
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	r := chi.NewRouter()

	// Standard chi middleware
	r.Use(middleware.RealIP)

	// Custom middleware in correct order (RequestID → Metrics → Recovery)
	r.Use(servermw.RequestID)      // 1. Request ID (early for correlation)
	r.Use(servermw.RequestMetrics) // 2. Metrics (measure everything)
	r.Use(servermw.Recovery)       // 3. Panic recovery (outermost)

	// Standardized error responses using centralized HandleError
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewNotFoundError("The requested resource was not found")
		HandleError(w, req, err)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource")
		HandleError(w, req, err)
	})

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
	}

	// Ensure handlers use the centralized error responder
	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  durationOr(s.cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(s.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(s.cfg.IdleTimeout, 120*time.Second),
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured server port
func (s *Server) Port() int {
	return s.cfg.Port
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
