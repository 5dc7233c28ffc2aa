package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dxbackend",
	Short: "Data Explorer backend for The Global Fund datasets",
	Long: `The Data Explorer backend serves The Global Fund datasets over HTTP
and keeps them fresh with a daily scheduled refresh. It can also install
the refresh trigger into the system crontab.`,
	Version: Version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(cronCmd)
}
