// Package main is the entry point for the shamebot CLI.
//
// SUBCOMMANDS:
//   - serve        → Discord bot + OAuth/webhook HTTP server + daily schedule
//   - readout      → run the daily readout once, now
//   - connect-url  → print a Todoist authorize URL
//
// main stays minimal: it reads configuration, builds the dependencies each
// subcommand needs (app.go), and hands them to the internal packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "shamebot",
		Short: "Discord accountability bot for Todoist",
		Long: `Shamebot links Discord members to their Todoist accounts, posts a daily
readout of the tasks they left open, labels those tasks "shame", and keeps
a streak of days on which everything was done.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newReadoutCmd(&configPath),
		newConnectURLCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
