package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pagelens server",
	Long: `Start the pagelens HTTP server.

The server provides:
  - /health            - Basic server health check
  - /status            - Registered providers and validation state
  - /api/extract       - Upload a PDF, download validated markdown
  - /api/validate      - Cross-validate already extracted pages
  - /api/tables/merge  - Merge table fragments across pages

Configuration hot-reloads when the config file changes.

Examples:
  pagelens serve                    # Start on default port 8385
  pagelens serve --port 3000        # Start on custom port
  pagelens serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		cfg := cm.Get()
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: config value)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: config value)")

	rootCmd.AddCommand(serveCmd)
}
