package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/Kshitij83/skillcy/api/swagger"
	"github.com/Kshitij83/skillcy/pkg/config"
	"github.com/Kshitij83/skillcy/pkg/database"
	"github.com/Kshitij83/skillcy/pkg/logger"
)

// @title Skillcy API
// @version 1.0.0
// @description Course sharing backend: profiles, courses and personal libraries.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "skillcy",
		Short:         "Skillcy course sharing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newStatsCommand(),
		newSeedCommand(),
	)
	return root
}

// environment is the shared state every subcommand starts from.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnvironment() (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &environment{cfg: cfg, logger: logr}, nil
}

func (r *environment) openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := database.NewPostgres(ctx, r.cfg.Database, r.logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func (r *environment) close() {
	_ = r.logger.Sync()
}
