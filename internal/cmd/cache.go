package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
)

var (
	cacheClearQuery   string
	cacheClearExpired bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local search result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached search results",
	Long: `Clear cached search results.

By default every cached page is removed. Use --query to clear a single
query's pages, or --expired to only drop entries past their TTL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cacheClearQuery != "" && cacheClearExpired {
			return fmt.Errorf("--query and --expired are mutually exclusive")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		var summary string
		switch {
		case cacheClearQuery != "":
			if err := db.ClearQuery(cmd.Context(), cacheClearQuery); err != nil {
				return err
			}
			summary = fmt.Sprintf("Cleared cached pages for query %q", cacheClearQuery)

		case cacheClearExpired:
			deleted, err := db.ClearExpired(cmd.Context())
			if err != nil {
				return err
			}
			summary = fmt.Sprintf("Cleared %d expired cache entries", deleted)

		default:
			deleted, err := db.ClearAllCache(cmd.Context())
			if err != nil {
				return err
			}
			summary = fmt.Sprintf("Cleared %d cache entries", deleted)
		}

		fmt.Print(ascii.DrawBox(strings.Join([]string{"Cache", "", summary}, "\n"), 0))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().StringVar(&cacheClearQuery, "query", "", "clear only this query's cached pages")
	cacheClearCmd.Flags().BoolVar(&cacheClearExpired, "expired", false, "clear only entries past their TTL")
}
