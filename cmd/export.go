package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/accounts"
	"github.com/sells-group/digiaccounts/internal/export"
	"github.com/sells-group/digiaccounts/internal/filing"
	"github.com/sells-group/digiaccounts/internal/store"
	"github.com/sells-group/digiaccounts/internal/xbrl"
)

var (
	exportOut          string
	exportRegistration string
	exportLimit        int
	exportFilings      []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored accounts records to an XLSX workbook",
	Long:  "Exports stored records, one row per filing, and optionally the balance sheets of local filings given with --filing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		asm, err := initAssembler()
		if err != nil {
			return err
		}

		wb, err := buildWorkbook(ctx, env.Store, asm, store.Filter{
			Registration: exportRegistration,
			Limit:        exportLimit,
		}, exportFilings)
		if err != nil {
			return err
		}
		if err := wb.Save(exportOut); err != nil {
			return err
		}
		zap.L().Info("export written", zap.String("path", exportOut))
		return nil
	},
}

// buildWorkbook lists the documents matching filter and adds the balance
// sheets of the given local filings.
func buildWorkbook(ctx context.Context, st store.Store, asm *accounts.Assembler, filter store.Filter, filings []string) (*export.Workbook, error) {
	docs, err := st.List(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "export: list documents")
	}

	wb := export.NewWorkbook()
	if err := wb.AddDocuments(docs); err != nil {
		return nil, err
	}
	for _, path := range filings {
		name, err := filing.ParseName(path)
		if err != nil {
			return nil, err
		}
		inst, err := xbrl.ParseFile(path)
		if err != nil {
			return nil, err
		}
		if err := wb.AddBalanceSheet(name.ID(), asm.Resolver().BalanceSheet(inst.Facts)); err != nil {
			return nil, err
		}
	}
	return wb, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "accounts.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportRegistration, "registration", "", "only export this registration number")
	exportCmd.Flags().IntVar(&exportLimit, "limit", store.DefaultListLimit, "maximum documents to export")
	exportCmd.Flags().StringSliceVar(&exportFilings, "filing", nil, "local filing whose balance sheet to include (repeatable)")
	rootCmd.AddCommand(exportCmd)
}
