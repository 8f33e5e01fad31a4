package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchbeam/searchbeam/internal/config"
	"github.com/searchbeam/searchbeam/internal/core"
	"github.com/searchbeam/searchbeam/internal/core/engine"
	"github.com/searchbeam/searchbeam/internal/core/searcher"
	"github.com/searchbeam/searchbeam/internal/observability"
	"github.com/searchbeam/searchbeam/internal/output"
)

var (
	searchPage  int
	searchForce bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot search against the upstream API",
	Long: `Run a one-shot search against the configured upstream API.

Results are served from the local cache when a fresh enough page exists;
use --force to bypass the cache and hit the upstream directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]

		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}

		cfg := config.GetConfig()
		if cfg == nil {
			if cfg, err = config.Load(cfgFile); err != nil {
				return err
			}
		}
		if cfg.Upstream.BaseURL == "" {
			return fmt.Errorf("no upstream configured: set upstream.base_url or SEARCHBEAM_UPSTREAM_BASE_URL")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		var page *core.SearchPage
		if !searchForce {
			page, err = db.GetCachedPage(cmd.Context(), query, searchPage)
			if err != nil {
				observability.CLILogger.Warn("Cache lookup failed", zap.Error(err))
			}
		}

		if page == nil {
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
				Logger:   observability.CLILogger,
				PageSize: cfg.Search.PageSize,
			}

			page, err = client.Search(cmd.Context(), query, searchPage)
			if err != nil {
				return err
			}

			if err := db.SetCachedPage(cmd.Context(), page, cfg.Search.CacheTTL); err != nil {
				observability.CLILogger.Warn("Caching search page failed", zap.Error(err))
			}
		}

		if outDir != "" {
			if outDir, err = ensureOutDir(outDir); err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("search.%s", outputExtension(format)))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.NewFormatter(format).FormatPage(page)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page to fetch")
	searchCmd.Flags().BoolVar(&searchForce, "force", false, "bypass the local cache")
	searchCmd.Flags().StringP("output-format", "o", string(output.FormatTable), "Output format: table|json|markdown")
	searchCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	searchCmd.Flags().String("out-dir", "", "Write output to a directory")
}
