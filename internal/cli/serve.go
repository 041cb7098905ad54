package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trade-journal/internal/server"
)

// addServeCommands adds the HTTP server command.
func addServeCommands(rootCmd *cobra.Command, app *App) {
	var (
		addr     string
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the journal JSON API over HTTP",
		Long: `Serve the journal JSON API. Every /api route except health and
registration requires HTTP Basic credentials of a journal user.
Prometheus metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config.Server
			if addr != "" {
				cfg.Addr = addr
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			if readOnly && app.Access != nil {
				app.Access.SetReadOnly(true)
			}

			ctx, stop := signal.NotifyContext(app.withContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg, svc, app.screenshots(), app.Logger)
			app.Logger.Info().
				Str("db", app.Config.Database.Path).
				Bool("read_only", app.Access.IsReadOnly()).
				Msg("Starting journal server")
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "reject every write request")
	rootCmd.AddCommand(cmd)
}
