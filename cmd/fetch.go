package main

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/fetcher"
)

var (
	fetchDate  string
	fetchMonth string
	fetchURL   string
	fetchForce bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a Companies House accounts archive and ingest it",
	Long: "Downloads the daily bulk archive for --date, the monthly archive for --month, or any archive at --url, " +
		"then extracts and stores its records. Archives with a completed run are skipped unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		url, err := archiveURL(cfg.Fetch.BaseURL, fetchDate, fetchMonth, fetchURL)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "fetch")
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("fetching archive", zap.String("url", url), zap.Bool("force", fetchForce))
		stats, err := env.Processor.FetchArchive(ctx, initFetcher(), url, fetchForce)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

// archiveURL resolves exactly one of date (YYYY-MM-DD), month (YYYY-MM) or
// a literal URL into the archive to download.
func archiveURL(base, date, month, rawURL string) (string, error) {
	set := 0
	for _, v := range []string{date, month, rawURL} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return "", eris.New("exactly one of --date, --month or --url is required")
	}

	switch {
	case rawURL != "":
		return rawURL, nil
	case date != "":
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return "", eris.Wrapf(err, "invalid --date %q (want YYYY-MM-DD)", date)
		}
		return fetcher.BulkArchiveURL(base, d), nil
	default:
		m, err := time.Parse("2006-01", month)
		if err != nil {
			return "", eris.Wrapf(err, "invalid --month %q (want YYYY-MM)", month)
		}
		return fetcher.MonthlyArchiveURL(base, m), nil
	}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDate, "date", "", "daily bulk archive date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchMonth, "month", "", "monthly archive (YYYY-MM)")
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "archive URL")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "ingest even if a completed run exists")
	rootCmd.AddCommand(fetchCmd)
}
