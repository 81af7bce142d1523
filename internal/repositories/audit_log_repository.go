package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// auditChainLockKey is the advisory lock key guarding the chain tail.
const auditChainLockKey int64 = 0x62617272656c // "barrel"

type AuditLogRepository struct {
	DB DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{DB: db}
}

const auditColumns = `
	id, seq, action, entity_type, entity_id, user_id, user_role, details,
	ip_address, user_agent, response_status, timestamp, prev_hash, hash`

func scanAudit(row pgx.Row) (*models.AuditLog, error) {
	var a models.AuditLog
	err := row.Scan(
		&a.ID, &a.Seq, &a.Action, &a.EntityType, &a.EntityID, &a.UserID, &a.UserRole, &a.Details,
		&a.IPAddress, &a.UserAgent, &a.ResponseStatus, &a.Timestamp, &a.PrevHash, &a.Hash,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LockChain takes a transaction-scoped advisory lock so only one writer
// extends the chain at a time.
func (r *AuditLogRepository) LockChain(ctx context.Context) error {
	if _, err := r.DB.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, auditChainLockKey); err != nil {
		return fmt.Errorf("failed to lock audit chain: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) Tail(ctx context.Context) (*models.AuditLog, error) {
	a, err := scanAudit(r.DB.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_logs ORDER BY seq DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AuditLogRepository) Insert(ctx context.Context, a *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, seq, action, entity_type, entity_id, user_id, user_role, details,
			ip_address, user_agent, response_status, timestamp, prev_hash, hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.DB.Exec(ctx, query,
		a.ID, a.Seq, a.Action, a.EntityType, a.EntityID, a.UserID, a.UserRole, a.Details,
		a.IPAddress, a.UserAgent, a.ResponseStatus, a.Timestamp, a.PrevHash, a.Hash,
	)
	if uniqueViolation(err, "audit_logs_seq_key") {
		return apperr.ErrStaleState.WithMessagef("audit seq %d already taken", a.Seq)
	}
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) collect(ctx context.Context, query string, args ...any) ([]*models.AuditLog, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}

// List returns matching entries, newest first unless filter.Ascending.
func (r *AuditLogRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.From != nil {
		add("timestamp >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("timestamp < $%d", *filter.To)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Ascending {
		query += " ORDER BY seq ASC"
	} else {
		query += " ORDER BY seq DESC"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.collect(ctx, query, args...)
}

func (r *AuditLogRepository) Range(ctx context.Context, afterSeq int64, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 {
		limit = 1000
	}
	return r.collect(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, afterSeq, limit)
}
