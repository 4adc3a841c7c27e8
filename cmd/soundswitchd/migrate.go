package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	var (
		down   int
		status bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: "Apply pending schema migrations. --down N rolls back the last N " +
			"applied migrations; --status lists applied and pending versions.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down < 0 {
				return fmt.Errorf("--down must not be negative")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := database.Open(database.Config{
				Path:        cfg.Database.Path,
				WALMode:     cfg.Database.WALMode,
				BusyTimeout: cfg.Database.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // Read-mostly CLI; close error is not actionable

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case status:
				applied, pending, err := db.GetMigrationStatus(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT")
				for _, r := range applied {
					fmt.Fprintf(w, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(w, "%s\tpending\t-\n", m.Version)
				}
				return w.Flush()

			case down > 0:
				n, err := db.MigrateDown(ctx, down)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "rolled back %d migration(s)\n", n)
				return nil

			default:
				_, pending, err := db.GetMigrationStatus(ctx)
				if err != nil {
					return err
				}
				if err := db.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "applied %d migration(s)\n", len(pending))
				return nil
			}
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back the last N applied migrations")
	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}
