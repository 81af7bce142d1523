package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"barrel-backend/internal/config"
	"barrel-backend/internal/db"
	"barrel-backend/internal/logger"
	"barrel-backend/internal/repositories"
	"barrel-backend/internal/repositories/memory"
	"barrel-backend/internal/services"
	"barrel-backend/internal/timeutil"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "barrelctl",
	Short:         "Operational tasks for barrel-backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
}

func fmtErr(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.RedString("error: ")+fmt.Sprintf(format, args...))
}

func fmtOK(format string, args ...any) {
	fmt.Println(color.GreenString("ok: ") + fmt.Sprintf(format, args...))
}

// loadConfig reads and validates the config and applies the plant time zone.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.App.Env), nil
}

// openEngine connects to the configured store without migrating it.
func openEngine(ctx context.Context, cfg *config.Config, log *slog.Logger) (*services.Engine, error) {
	var store repositories.Store
	if cfg.Storage.Driver == config.DriverMemory {
		store = memory.New()
	} else {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = repositories.NewPostgresStore(pool)
	}
	return services.NewEngine(store, log), nil
}

// run wraps a command body so failures are printed in color.
func run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			fmtErr("%v", err)
			return err
		}
		return nil
	}
}
