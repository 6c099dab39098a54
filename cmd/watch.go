package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest filings and archives as they appear in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dir := args[0]
		info, err := os.Stat(dir)
		if err != nil {
			return eris.Wrapf(err, "watch %s", dir)
		}
		if !info.IsDir() {
			return eris.Errorf("watch: %s is not a directory", dir)
		}

		env, err := initEnv(ctx, "watch")
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Processor.Watch(ctx, dir)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
