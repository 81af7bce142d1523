package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator handles database schema migrations
type Migrator struct {
	dsn    string
	logger *slog.Logger
}

// NewMigrator creates a new migration runner
//
// Parameters:
//   - dsn: PostgreSQL connection string
//   - logger: destination for progress messages
//
// Returns:
//   - *Migrator: New migrator instance
func NewMigrator(dsn string, logger *slog.Logger) *Migrator {
	return &Migrator{dsn: dsn, logger: logger}
}

// RunMigrations applies every pending migration embedded in the binary.
//
// Migrations are tracked by goose in its own version table, so running this
// on every start is safe.
//
// Returns:
//   - error: If any migration fails
func (m *Migrator) RunMigrations(ctx context.Context) error {
	m.logger.Info("starting database migrations")

	sqlDB, err := goose.OpenDBWithDriver("pgx", m.dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	before, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	after, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if after > before {
		m.logger.Info("migrations applied", "from_version", before, "to_version", after)
	} else {
		m.logger.Info("database schema is up to date", "version", after)
	}
	return nil
}

// Status logs the applied state of every embedded migration.
func (m *Migrator) Status(ctx context.Context) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", m.dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.StatusContext(ctx, sqlDB, "migrations")
}
