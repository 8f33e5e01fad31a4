package server

import (
	"net/http"

	apperrors "github.com/searchbeam/searchbeam/internal/errors"
	"github.com/searchbeam/searchbeam/internal/server/handlers"
	servermw "github.com/searchbeam/searchbeam/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.deps.Health
	if health == nil {
		health = handlers.NewHealthManager(handlers.AppVersion)
	}

	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Search API
	if s.deps.Search != nil {
		s.router.Get("/api/search", s.deps.Search.Handle)
	} else {
		s.router.Get("/api/search", serviceUnavailable("search service not configured"))
	}

	// Content request API: writes go through the admission limiter
	if s.deps.Requests != nil {
		s.router.With(servermw.RateLimit(s.deps.Limiter)).
			Post("/api/requests", s.deps.Requests.Create)
		s.router.Get("/api/requests", s.deps.Requests.List)
	}
}

func serviceUnavailable(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		envelope := apperrors.NewInternalError(message)
		HandleError(w, r, envelope)
	}
}
