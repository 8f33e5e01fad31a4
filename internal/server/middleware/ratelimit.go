package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/searchbeam/searchbeam/internal/core/engine"
	"github.com/searchbeam/searchbeam/internal/metrics"
	"github.com/searchbeam/searchbeam/internal/observability"
	"go.uber.org/zap"
)

// RateLimit gates requests through the sliding-window limiter. The key is
// the caller's session ID when present, otherwise the client host. Rejected
// requests get a 429 with a Retry-After header derived from the oldest
// request still inside the window.
func RateLimit(limiter *engine.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientKey(r)
			if key == "" {
				key = engine.AnonymousKey
			}

			if !limiter.IsRateLimited(key) {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := limiter.RetryAfter(key)
			retrySeconds := int(math.Ceil(retryAfter.Seconds()))
			if retrySeconds < 1 {
				retrySeconds = 1
			}

			metrics.RecordRateLimitRejection(getEndpointPattern(r))
			if observability.ServerLogger != nil {
				observability.ServerLogger.Warn("Request rejected by rate limiter",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.Int("retry_after_seconds", retrySeconds))
			}

			envelope := errors.NewErrorEnvelope("RATE_LIMITED", "Too many requests, slow down").
				WithCorrelationID(GetRequestID(r.Context()))
			envelope, _ = envelope.WithContext(map[string]interface{}{
				"retry_after_seconds": retrySeconds,
			})

			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
			writeErrorResponse(w, envelope, http.StatusTooManyRequests)
		})
	}
}
