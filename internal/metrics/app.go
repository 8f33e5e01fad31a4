package metrics

import (
	"time"

	"github.com/searchbeam/searchbeam/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Search metrics
	SearchesTotal    = "app_searches_total"
	SearchDurationMS = "app_search_duration_ms"
	RetriesTotal     = "app_upstream_retries_total"

	// Cache metrics
	CacheLookupsTotal = "app_cache_lookups_total"

	// Admission metrics
	RateLimitRejectionsTotal = "app_rate_limit_rejections_total"

	// Connection metrics
	ActiveConnections = "app_active_connections"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordSearch records one coordinated search with its disposition
// (completed, duplicate_suppressed, stale_discarded, failed, no_executor).
func RecordSearch(disposition string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SearchesTotal,
			1,
			map[string]string{
				"disposition": disposition,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			SearchDurationMS,
			duration,
			map[string]string{
				"disposition": disposition,
			},
		)
	}
}

// RecordRetry records one retry of the upstream search call
func RecordRetry(reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RetriesTotal,
			1,
			map[string]string{
				"reason": reason,
			},
		)
	}
}

// RecordCacheLookup records a result-cache lookup outcome
func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheLookupsTotal,
			1,
			map[string]string{
				"outcome": outcome,
			},
		)
	}
}

// RecordRateLimitRejection records a request rejected at admission
func RecordRateLimitRejection(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitRejectionsTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
			},
		)
	}
}

// SetActiveConnections sets the current number of active connections
func SetActiveConnections(count int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ActiveConnections,
			float64(count),
			nil,
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
