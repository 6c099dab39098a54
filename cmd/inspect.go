package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/digiaccounts/internal/accounts"
	"github.com/sells-group/digiaccounts/internal/filing"
	"github.com/sells-group/digiaccounts/internal/xbrl"
)

var (
	inspectBalanceSheet bool
	inspectShares       bool
	inspectOfficers     bool
	inspectFilingDate   string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the record assembled from one filing without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filingDate, err := parseOptionalDate(inspectFilingDate)
		if err != nil {
			return err
		}
		asm, err := initAssembler()
		if err != nil {
			return err
		}
		return inspectFile(cmd.OutOrStdout(), asm, args[0], inspectOptions{
			FilingDate:   filingDate,
			BalanceSheet: inspectBalanceSheet,
			Shares:       inspectShares,
			Officers:     inspectOfficers,
		})
	},
}

type inspectOptions struct {
	FilingDate   time.Time
	BalanceSheet bool
	Shares       bool
	Officers     bool
}

type inspectOutput struct {
	Record       *accounts.Record     `json:"record"`
	Facts        int                  `json:"facts"`
	Truncated    bool                 `json:"truncated"`
	BalanceSheet []accounts.Line      `json:"balance_sheet,omitempty"`
	Shares       []accounts.ShareLine `json:"shares,omitempty"`
	Officers     []accounts.Officer   `json:"officers,omitempty"`
}

func inspectFile(w io.Writer, asm *accounts.Assembler, path string, opts inspectOptions) error {
	name, err := filing.ParseName(path)
	if err != nil {
		return err
	}
	inst, err := xbrl.ParseFile(path)
	if err != nil {
		return err
	}
	rec := asm.Assemble(name.ID(), opts.FilingDate, inst.Facts)
	out := inspectOutput{Record: rec, Facts: len(inst.Facts), Truncated: rec.Truncated()}
	if opts.BalanceSheet {
		out.BalanceSheet = asm.Resolver().BalanceSheet(inst.Facts)
	}
	if opts.Shares {
		out.Shares = asm.Resolver().ShareFacts(inst.Facts)
	}
	if opts.Officers {
		out.Officers = asm.Resolver().Officers(inst.Facts)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectBalanceSheet, "balance-sheet", false, "include balance sheet lines")
	inspectCmd.Flags().BoolVar(&inspectShares, "shares", false, "include share-related facts")
	inspectCmd.Flags().BoolVar(&inspectOfficers, "officers", false, "include named entity officers")
	inspectCmd.Flags().StringVar(&inspectFilingDate, "filing-date", "", "filing date (YYYY-MM-DD)")
	rootCmd.AddCommand(inspectCmd)
}
