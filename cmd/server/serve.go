package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/prompt-library/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the prompt library HTTP server.

The server stops gracefully on Ctrl+C or SIGTERM, waiting up to 30 seconds
for in-flight requests before closing the database and search index.

When started with a config file, edits to its "categories" section take
effect without a restart.

Examples:
  promptlib serve                         # port from config (default 8080)
  promptlib serve --port 3000
  PROMPTLIB_LOG_LEVEL=debug promptlib serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cm, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := cm.Get()
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger := cfg.NewLogger()
	if file := cm.ConfigFile(); file != "" {
		logger.Info("configuration loaded", slog.String("file", file))
	}

	srv, err := server.New(cm, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until the server is shut down.
	return srv.Start()
}
