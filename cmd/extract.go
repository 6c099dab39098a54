package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/pipeline"
)

var (
	extractForce      bool
	extractFilingDate string
)

var extractCmd = &cobra.Command{
	Use:   "extract <files...>",
	Short: "Extract accounts records from local filings or ZIP archives",
	Long:  "Parses iXBRL documents and bulk archives and inserts each record unless its id is already stored.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filingDate, err := parseOptionalDate(extractFilingDate)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		archives, files := partitionInputs(args)
		var total pipeline.Stats

		for _, a := range archives {
			stats, err := env.Processor.ProcessArchive(ctx, a, extractForce)
			if err != nil {
				return eris.Wrapf(err, "extract archive %s", a)
			}
			total = addStats(total, stats)
		}
		if len(files) > 0 {
			stats, err := env.Processor.ProcessFiles(ctx, files, filingDate)
			if err != nil {
				return err
			}
			total = addStats(total, stats)
		}

		zap.L().Info("extract complete",
			zap.Int("archives", len(archives)),
			zap.Int("files", len(files)),
			zap.Int64("inserted", total.Inserted),
			zap.Int64("failed", total.Failed),
		)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(total)
	},
}

// partitionInputs splits paths into ZIP archives and single documents,
// keeping their order.
func partitionInputs(paths []string) (archives, files []string) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".zip") {
			archives = append(archives, p)
		} else {
			files = append(files, p)
		}
	}
	return archives, files
}

func addStats(a, b pipeline.Stats) pipeline.Stats {
	return pipeline.Stats{
		Processed: a.Processed + b.Processed,
		Inserted:  a.Inserted + b.Inserted,
		Existing:  a.Existing + b.Existing,
		Truncated: a.Truncated + b.Truncated,
		Failed:    a.Failed + b.Failed,
	}
}

// parseOptionalDate parses a YYYY-MM-DD flag value; empty means unknown.
func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}

func init() {
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "reprocess archives that already have a completed run")
	extractCmd.Flags().StringVar(&extractFilingDate, "filing-date", "", "filing date (YYYY-MM-DD) for loose documents")
	rootCmd.AddCommand(extractCmd)
}
