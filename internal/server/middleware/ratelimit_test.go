package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchbeam/searchbeam/internal/core/engine"
)

func newTestLimiter(maxRequests int) *engine.RateLimiter {
	return engine.NewRateLimiter(engine.RateLimitConfig{
		Window:          time.Minute,
		MaxRequests:     maxRequests,
		CleanupInterval: 5 * time.Minute,
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	handler := RateLimit(newTestLimiter(3))(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
		req.Header.Set(SessionIDHeader, "session-a")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	handler := RateLimit(newTestLimiter(2))(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
		req.Header.Set(SessionIDHeader, "session-a")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	req.Header.Set(SessionIDHeader, "session-a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	handler := RateLimit(newTestLimiter(1))(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	first.Header.Set(SessionIDHeader, "session-a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	blocked := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	blocked.Header.Set(SessionIDHeader, "session-a")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, blocked)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	other := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	other.Header.Set(SessionIDHeader, "session-b")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFallsBackToClientHost(t *testing.T) {
	handler := RateLimit(newTestLimiter(1))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	req.RemoteAddr = "10.1.2.3:4444"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "same host should share one budget")
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	handler := RateLimit(nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
