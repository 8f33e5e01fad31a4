package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/searchbeam/searchbeam/internal/output"
)

var requestsListLimit int

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Inspect submitted content requests",
}

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submitted content requests, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		requests, err := db.ListContentRequests(cmd.Context(), requestsListLimit)
		if err != nil {
			return err
		}

		if outDir != "" {
			if outDir, err = ensureOutDir(outDir); err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("requests.list.%s", outputExtension(format)))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.NewFormatter(format).FormatRequests(requests)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(requestsCmd)
	requestsCmd.AddCommand(requestsListCmd)

	requestsListCmd.Flags().IntVar(&requestsListLimit, "limit", 50, "maximum number of requests to list")
	requestsListCmd.Flags().StringP("output-format", "o", string(output.FormatTable), "Output format: table|json|markdown")
	requestsListCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	requestsListCmd.Flags().String("out-dir", "", "Write output to a directory")
}
