package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	datadir   = btcutil.AppDataDir("funder-cli", false)
	statePath = filepath.Join(datadir, "state.json")

	initialState = map[string]string{
		"daemon_url": "http://127.0.0.1:8080",
	}

	rootCmd = &cobra.Command{
		Use:   "funder",
		Short: "CLI for funderd",
		Long:  "This CLI lets you interact with a running funderd daemon",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if _, err := os.Stat(datadir); os.IsNotExist(err) {
				return os.MkdirAll(datadir, os.ModeDir|0755)
			}
			return nil
		},
		SilenceUsage: true,
		Version:      formatVersion(),
	}
)

func init() {
	rootCmd.AddCommand(
		configCmd, statusCmd, balanceCmd, addressCmd, fundCmd, clientCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printErr(err)
		os.Exit(1)
	}
}
