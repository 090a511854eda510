package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/prompt-library/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "promptlib",
	Short: "Personal prompt library with version history",
	Long: `promptlib stores prompt templates per user, keeps a semantic-version
history of every edit, groups prompts into categories by tag and can rewrite
prompts through an OpenAI-compatible model.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.promptlib/config.yaml)",
	)

	rootCmd.AddCommand(serveCmd, exportCmd, importCmd, categoriesCmd, initConfigCmd)
}

// loadConfig reads the configuration for any command. Problems found
// while loading are logged to stderr so they never mix with command output.
func loadConfig() (*config.Manager, error) {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return config.NewManager(cfgFile, bootstrap)
}

// cliLogger is the logger for the non-server commands. It writes to
// stderr so a dump on stdout stays machine-readable.
func cliLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}
