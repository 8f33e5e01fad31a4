package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/searchbeam/searchbeam/internal/config"
	"github.com/searchbeam/searchbeam/internal/core"
	"github.com/searchbeam/searchbeam/internal/core/engine"
	apperrors "github.com/searchbeam/searchbeam/internal/errors"
	"github.com/searchbeam/searchbeam/internal/server/handlers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	gateway := &handlers.SearchGateway{
		NewCoordinator: func() *engine.Coordinator {
			return &engine.Coordinator{State: &engine.SearchState{}}
		},
		Exec: func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
			return &core.SearchPage{Query: query, Page: page}, nil
		},
	}

	return New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Search:  gateway,
		Limiter: engine.NewRateLimiter(engine.RateLimitConfig{Window: time.Minute, MaxRequests: 10}),
	})
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/search", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestServerRoutesSearch(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=cats", nil)
	req.Header.Set("X-Session-ID", "s1")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body handlers.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode search response: %v", err)
	}

	if body.Disposition != string(engine.DispositionCompleted) {
		t.Fatalf("expected completed disposition, got %s", body.Disposition)
	}
}

func TestServerRoutesHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}
