package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/repository"
	"github.com/Kshitij83/skillcy/internal/service"
)

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Inspect and repair profile counters",
	}
	cmd.AddCommand(newStatsCheckCommand(), newStatsRecomputeCommand())
	return cmd
}

func newStatsService(rt *environment, db *sqlx.DB, concurrency int) *service.StatsService {
	if concurrency <= 0 {
		concurrency = rt.cfg.Stats.RecomputeConcurrency
	}
	profiles := repository.NewProfileRepository(db)
	metrics := service.NewMetricsService()
	trigger := service.NewStatsTrigger(profiles, metrics, rt.logger)
	return service.NewStatsService(db, profiles, trigger, metrics, rt.logger, concurrency)
}

func newStatsCheckCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report profiles whose stored counters differ from live counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			db, err := rt.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stats := newStatsService(rt, db, 0)
			out := cmd.OutOrStdout()
			if userID != "" {
				drift, err := stats.Check(ctx, userID)
				if err != nil {
					return err
				}
				printDrift(out, *drift)
				if !drift.InSync {
					return errDrift
				}
				return nil
			}

			drifted, err := stats.CheckAll(ctx)
			if err != nil {
				return err
			}
			for _, d := range drifted {
				printDrift(out, d)
			}
			if len(drifted) > 0 {
				return fmt.Errorf("%d profiles: %w", len(drifted), errDrift)
			}
			fmt.Fprintln(out, "all profiles in sync")
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "check a single user id")
	return cmd
}

func newStatsRecomputeCommand() *cobra.Command {
	var (
		userID      string
		all         bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute profile counters from live counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (userID == "") == !all {
				return errors.New("exactly one of --user or --all is required")
			}
			rt, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			db, err := rt.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stats := newStatsService(rt, db, concurrency)
			if userID != "" {
				profile, err := stats.Recompute(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s enrolled=%d completed=%d uploads=%d\n",
					profile.UserID, profile.Enrolled, profile.Completed, profile.Uploads)
				return nil
			}
			summary, err := stats.RecomputeAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d of %d profiles\n", summary.Updated, summary.Users)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "recompute a single user id")
	cmd.Flags().BoolVar(&all, "all", false, "recompute every profile")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel recomputes for --all (defaults to STATS_RECOMPUTE_CONCURRENCY)")
	return cmd
}

var errDrift = errors.New("stored counters drifted from live counts")

func printDrift(w io.Writer, d models.StatsDrift) {
	state := "ok"
	if !d.InSync {
		state = "DRIFT"
	}
	fmt.Fprintf(w, "%-5s %s stored(enrolled=%d completed=%d uploads=%d) live(enrolled=%d completed=%d uploads=%d)\n",
		state, d.UserID,
		d.Stored.Enrolled, d.Stored.Completed, d.Stored.Uploads,
		d.Live.Enrolled, d.Live.Completed, d.Live.Uploads)
}
