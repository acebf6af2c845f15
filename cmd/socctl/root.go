package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreschagin/soc-portal/pkg/config"
	"github.com/dreschagin/soc-portal/pkg/logger"

	_ "github.com/lib/pq"
)

// app holds what every subcommand shares once PersistentPreRunE has run.
type app struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "socctl",
		Short:         "Operator tooling for the SOC portal",
		Long:          "socctl manages the downtime schema, imports downtime records from YAML and prints reliability reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = cfg.LogLevel
			}
			a.cfg = cfg
			a.log = logger.New(level)
			a.log.SetService("socctl")
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(a),
		newImportCmd(a),
		newReliabilityCmd(a),
	)
	return root
}

// openDB connects to Postgres with a small pool; callers close it.
func (a *app) openDB() (*sql.DB, error) {
	db, err := sql.Open("postgres", a.cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
