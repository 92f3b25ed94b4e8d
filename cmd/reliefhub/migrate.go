package main

import (
	"fmt"

	"github.com/reliefhub/reliefhub-backend/pkg/config"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "directory containing the migration files (defaults to migrations.dir)")

	load := func() (*config.Config, *logger.Logger, string, error) {
		cfg, err := config.LoadWithValidation(serviceName)
		if err != nil {
			return nil, nil, "", fmt.Errorf("configuration error: %w", err)
		}
		d := dir
		if d == "" {
			d = cfg.Migrations.Dir
		}
		return cfg, logger.New(serviceName, cfg.Server.Environment), d, nil
	}

	var verbose bool
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, d, err := load()
			if err != nil {
				return err
			}
			return database.MigrateUp(d, cfg.Database.ConnURL(), log, verbose)
		},
	}
	up.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each migration step")

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, d, err := load()
			if err != nil {
				return err
			}
			return database.MigrateDown(d, cfg.Database.ConnURL(), steps, log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, d, err := load()
			if err != nil {
				return err
			}
			v, dirty, err := database.MigrationVersion(d, cfg.Database.ConnURL(), log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
