package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreschagin/soc-portal/internal/infrastructure/persistence/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the downtime schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.migrate(cmd, -1)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.migrate(cmd, 0)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.openDB()
				if err != nil {
					return err
				}
				defer db.Close()

				version, dirty, err := postgres.SchemaVersion(db)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return err
			},
		},
	)
	return cmd
}

func (a *app) migrate(cmd *cobra.Command, target int) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := postgres.Migrate(db, target)
	if err != nil {
		return err
	}

	a.log.Info("Migration finished", "from", status.From, "to", status.To, "changed", status.Changed)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema %d -> %d\n", status.From, status.To)
	return err
}
