package repositories

import (
	"context"
	"errors"

	"barrel-backend/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(pgTx{db: tx})
	})
}

func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(pgTx{db: tx})
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.DB.Close()
}

type pgTx struct {
	db DBTX
}

func (t pgTx) Barrels() BarrelRepo             { return NewBarrelRepository(t.db) }
func (t pgTx) Damages() DamageRepo             { return NewDamageRepository(t.db) }
func (t pgTx) Repairs() RepairRepo             { return NewRepairRepository(t.db) }
func (t pgTx) Movements() MovementRepo         { return NewMovementRepository(t.db) }
func (t pgTx) Audit() AuditRepo                { return NewAuditLogRepository(t.db) }
func (t pgTx) Notifications() NotificationRepo { return NewNotificationRepository(t.db) }

const pgUniqueViolation = "23505"

// uniqueViolation reports whether err is a unique violation on constraint.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}

// notFound converts pgx.ErrNoRows into a typed not-found error.
func notFound(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return err
}

var (
	_ Store            = (*PostgresStore)(nil)
	_ BarrelRepo       = (*BarrelRepository)(nil)
	_ DamageRepo       = (*DamageRepository)(nil)
	_ RepairRepo       = (*RepairRepository)(nil)
	_ MovementRepo     = (*MovementRepository)(nil)
	_ AuditRepo        = (*AuditLogRepository)(nil)
	_ NotificationRepo = (*NotificationRepository)(nil)
)
