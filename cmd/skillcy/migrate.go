package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kshitij83/skillcy/internal/migrations"
)

func newMigrateCommand() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
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

			migrator := migrations.NewMigrator(db, rt.logger)
			if list {
				status, err := migrator.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
				for _, m := range status {
					applied := "pending"
					if m.Applied != nil {
						applied = m.Applied.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", m.Version, m.Name, applied)
				}
				return w.Flush()
			}

			applied, err := migrator.Up(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list migrations and their status instead of applying them")
	return cmd
}
