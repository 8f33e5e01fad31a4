package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Header keys for request correlation and session affinity.
const (
	RequestIDHeader = "X-Request-ID"
	SessionIDHeader = "X-Session-ID"
)

// contextKey is a custom type to avoid context key collisions
type contextKey string

const (
	RequestIDContextKey contextKey = "request_id"
	SessionIDContextKey contextKey = "session_id"
)

// RequestID middleware adds a unique request ID to each request and
// propagates the caller's session ID when one is supplied. It works
// alongside chi's built-in RequestID middleware.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prefer chi's request ID, then the caller's header, then a new UUID.
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		if sessionID := r.Header.Get(SessionIDHeader); sessionID != "" {
			ctx = context.WithValue(ctx, SessionIDContextKey, sessionID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context, falling back to
// chi's context key.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}

	if requestID := middleware.GetReqID(ctx); requestID != "" {
		return requestID
	}

	return ""
}

// GetSessionID retrieves the caller's session ID from context. Empty when
// the caller sent no session header.
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDContextKey).(string); ok {
		return sessionID
	}
	return ""
}

// ClientKey derives the admission-control key for a request: session ID
// when present, otherwise the client host.
func ClientKey(r *http.Request) string {
	if sessionID := GetSessionID(r.Context()); sessionID != "" {
		return sessionID
	}
	if sessionID := r.Header.Get(SessionIDHeader); sessionID != "" {
		return sessionID
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
