package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/migrations"
	"github.com/Kshitij83/skillcy/internal/server"
)

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			app, err := server.New(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := app.Close(closeCtx); err != nil {
					rt.logger.Warn("shutdown incomplete", zap.Error(err))
				}
			}()

			if migrate {
				applied, err := migrations.NewMigrator(app.DB(), rt.logger).Up(ctx)
				if err != nil {
					return err
				}
				rt.logger.Info("migrations applied", zap.Strings("versions", applied))
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
