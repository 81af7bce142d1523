package main

import (
	"fmt"

	"barrel-backend/internal/config"
	"barrel-backend/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: run(func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != config.DriverPostgres {
			return fmt.Errorf("storage.driver is %q, nothing to migrate", cfg.Storage.Driver)
		}
		if err := database.NewMigrator(cfg.DSN(), log).RunMigrations(cmd.Context()); err != nil {
			return err
		}
		fmtOK("schema is up to date")
		return nil
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied state of every migration",
	RunE: run(func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		return database.NewMigrator(cfg.DSN(), log).Status(cmd.Context())
	}),
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
