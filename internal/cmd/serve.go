package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/searchbeam/searchbeam/internal/config"
	"github.com/searchbeam/searchbeam/internal/core"
	"github.com/searchbeam/searchbeam/internal/core/engine"
	"github.com/searchbeam/searchbeam/internal/core/searcher"
	"github.com/searchbeam/searchbeam/internal/core/store"
	errwrap "github.com/searchbeam/searchbeam/internal/errors"
	"github.com/searchbeam/searchbeam/internal/metrics"
	"github.com/searchbeam/searchbeam/internal/observability"
	"github.com/searchbeam/searchbeam/internal/server"
	"github.com/searchbeam/searchbeam/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

The server will cleanly shut down the HTTP server, close the store, and
flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if cfg == nil {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return errwrap.WrapConfigInvalid(cmd.Context(), err, "config load failed")
			}
			cfg = loaded
		}
		if serverHost != "" {
			cfg.Server.Host = serverHost
		}
		if serverPort != 0 {
			cfg.Server.Port = serverPort
		}

		observability.InitServerLogger("searchbeam", cfg.Logging.Level)

		if cfg.Metrics.Enabled {
			metricsPort := cfg.Metrics.Port
			if metricsPort == 0 {
				metricsPort = 9090
			}
			if err := observability.InitMetrics("searchbeam", metricsPort); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}

			startedAt := time.Now()
			metrics.SetServerStartTime(startedAt.Unix())
			go func() {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					metrics.SetServerUptime(int64(time.Since(startedAt).Seconds()))
				}
			}()
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("upstream", cfg.Upstream.BaseURL))

		db, err := store.Open(cmd.Context(), cfg.Store)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "opening store failed")
		}
		if err := db.Migrate(cmd.Context()); err != nil {
			_ = db.Close()
			return errwrap.WrapDatabaseError(cmd.Context(), err, "store migration failed")
		}

		limiter := engine.NewRateLimiter(engine.RateLimitConfig{
			Window:          cfg.RateLimit.Window,
			MaxRequests:     cfg.RateLimit.MaxRequests,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})

		client := &searcher.Client{
			BaseURL: cfg.Upstream.BaseURL,
			HTTPClient: &http.Client{
				Timeout: cfg.Upstream.Timeout,
			},
			Retry: &engine.RetryStrategy{
				Config: engine.RetryConfig{
					MaxAttempts: cfg.Retry.MaxAttempts,
					BaseDelay:   cfg.Retry.BaseDelay,
					MaxBackoff:  cfg.Retry.MaxBackoff,
				},
			},
			Logger:   observability.ServerLogger,
			PageSize: cfg.Search.PageSize,
		}

		gateway := newSearchGateway(cfg, db, client)

		healthManager := handlers.NewHealthManager(versionInfo.Version)
		healthManager.RegisterChecker("store", db)
		if cfg.Metrics.Enabled {
			healthManager.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

		srv := server.New(cfg.Server, server.Deps{
			Search:   gateway,
			Requests: &handlers.RequestHandler{Store: db},
			Limiter:  limiter,
			Health:   healthManager,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Graceful shutdown handlers run LIFO: last registered, first executed.
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close the store
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing store...")
			if err := db.Close(); err != nil {
				observability.ServerLogger.Warn("Store close returned error",
					zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			if _, err := config.Load(cfgFile); err != nil {
				observability.ServerLogger.Error("Failed to reload config",
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))

			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// newSearchGateway wires the production search path: coordinator per
// session, upstream client as executor, store-backed result cache.
func newSearchGateway(cfg *config.Config, db *store.Store, client *searcher.Client) *handlers.SearchGateway {
	cacheTTL := cfg.Search.CacheTTL

	// The first-page cache write lives in ProcessResults, not in the
	// executor: the coordinator only invokes this hook for current
	// responses, so a superseded request's page is discarded without
	// touching the store.
	cachePage := func(ctx context.Context, page *core.SearchPage, query string) {
		if page == nil {
			return
		}
		if err := db.SetCachedPage(ctx, page, cacheTTL); err != nil {
			observability.ServerLogger.Warn("Caching search page failed",
				zap.String("query", query),
				zap.Int("page", page.Page),
				zap.Error(err))
		}
	}

	exec := func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		result, err := client.Search(ctx, query, page)
		if err != nil {
			return nil, err
		}
		// Pagination fills run outside the coordinator and are never
		// superseded; they cache directly.
		if page > 1 {
			cachePage(ctx, result, query)
		}
		return result, nil
	}

	return &handlers.SearchGateway{
		NewCoordinator: func() *engine.Coordinator {
			return &engine.Coordinator{
				State:    &engine.SearchState{},
				Cache:    db,
				DedupTTL: cfg.Search.DedupTTL,
				Logger:   observability.ServerLogger,
				Hooks: engine.Hooks{
					ProcessResults: cachePage,
				},
			}
		},
		Exec:  exec,
		Cache: db,
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "server port (overrides config)")
}
