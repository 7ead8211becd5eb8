package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"acp_dues/internal/config"
	"acp_dues/internal/config/connections/postgres"
	"acp_dues/internal/repository/database"
	"acp_dues/internal/server"
	"acp_dues/internal/transport/auth"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log := g.logger()

			a, err := newApp(ctx, log, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to serve the API")
			}
			if err := a.cfg.CheckConnections(ctx); err != nil {
				return fmt.Errorf("connection check: %w", err)
			}
			if migrate {
				n, err := database.Migrate(ctx, a.cfg.Postgres, log)
				if err != nil {
					return err
				}
				log.Info().Int("applied", n).Msg("migrations done")
			}

			metrics := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
			router := server.NewRouter(a.handlers(), auth.NewTokens(a.cfg.JWTSecret), metrics, log)
			return server.NewServer(a.cfg.Port, router, log).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := g.logger()
			settings, err := config.Load()
			if err != nil {
				return err
			}
			pg, err := postgres.NewConnection(cmd.Context(), settings.Postgres)
			if err != nil {
				return fmt.Errorf("postgres connect: %w", err)
			}
			defer pg.Close()

			n, err := database.Migrate(cmd.Context(), pg, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}
