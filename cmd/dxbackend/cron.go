package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/crontab"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
)

var (
	cronToken    string
	cronEndpoint string
)

// cronCmd represents the cron command
var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage the system crontab refresh entry",
	Long: `Install or inspect the crontab entry that triggers the daily dataset
refresh. The entry calls the running backend over HTTP at 09:30 every day
with the configured Authorization token.`,
}

// cronInstallCmd represents the cron install command
var cronInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the daily refresh entry into the crontab",
	Long: `Append the daily refresh entry to the invoking user's crontab.
Existing crontab entries are preserved and the entry is only added once;
running install again is a no-op.

Without --token the command asks for the Authorization token and falls
back to the default when the answer is empty.`,
	Run: cronInstallHandler,
}

func cronInstallHandler(cmd *cobra.Command, args []string) {
	log := mustCronLogger()

	token := cronToken
	if token == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Authorization token [%s]: ", crontab.DefaultToken)
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		token = strings.TrimSpace(line)
		if token == "" {
			token = crontab.DefaultToken
		}
	}

	endpoint := cronEndpoint
	if endpoint == "" {
		if cfg, err := config.LoadOrDefault(config.DefaultConfigPath); err == nil {
			endpoint = cfg.Crontab.Endpoint
		} else {
			endpoint = crontab.DefaultEndpoint
		}
	}

	installer := crontab.NewInstaller(nil, log)
	result, err := installer.Install(cmd.Context(), token, endpoint)
	if err != nil {
		log.Error("Failed to install crontab entry", err)
		os.Exit(1)
	}

	if result.Installed {
		fmt.Fprintf(cmd.OutOrStdout(), "Installed: %s\n", result.Entry)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Already installed: %s\n", result.Entry)
	}
}

// cronShowCmd represents the cron show command
var cronShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the refresh entry and whether it is installed",
	Run: func(cmd *cobra.Command, args []string) {
		log := mustCronLogger()

		token := cronToken
		if token == "" {
			token = crontab.DefaultToken
		}
		endpoint := cronEndpoint
		if endpoint == "" {
			endpoint = crontab.DefaultEndpoint
		}

		entry := crontab.Entry(token, endpoint)
		fmt.Fprintf(cmd.OutOrStdout(), "Entry: %s\n", entry)

		installer := crontab.NewInstaller(nil, log)
		installed, err := installer.Installed(cmd.Context(), token, endpoint)
		if err != nil {
			log.Error("Failed to read crontab", err)
			os.Exit(1)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed: %v\n", installed)
	},
}

func mustCronLogger() *logger.Logger {
	log, err := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func init() {
	cronCmd.PersistentFlags().StringVar(&cronToken, "token", "", "Authorization token for the installed entry")
	cronCmd.PersistentFlags().StringVar(&cronEndpoint, "url", "", "Refresh endpoint the entry calls")
	cronCmd.AddCommand(cronInstallCmd)
	cronCmd.AddCommand(cronShowCmd)
}
