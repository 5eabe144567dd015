package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gobd-datev-export/internal/server"
)

var listenAddr string

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on the configured address. The server stops
gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listenAddr != "" {
			appConfig.Server.Addr = listenAddr
		}

		conv, err := newConverter()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(conv, appConfig,
			server.WithLogger(appLog),
			server.WithVersion(Version),
		)
		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addProfileFlag(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (overrides server.addr)")
}
