package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maintsync/maintsync/internal/cli"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "maintsync",
		Short:   "Offline-first maintenance work-order client",
		Version: fmt.Sprintf("%s (built %s)", buildVersion, buildDate),
		Long: `maintsync keeps maintenance work orders on the local machine and replays
every change to the server when a connection is available. All commands
work fully offline.`,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file")

	rootCmd.AddCommand(cli.AccountCmd())
	rootCmd.AddCommand(cli.OrderCmd())
	rootCmd.AddCommand(cli.SyncCmd())
	rootCmd.AddCommand(cli.LoginCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
