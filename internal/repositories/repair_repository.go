package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type RepairRepository struct {
	DB DBTX
}

func NewRepairRepository(db DBTX) *RepairRepository {
	return &RepairRepository{DB: db}
}

const repairColumns = `
	id, barrel_id, damage_id, type, assigned_to, assigned_by, status,
	started_at, completed_at, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	created_at, updated_at`

func scanRepair(row pgx.Row) (*models.BarrelRepair, error) {
	var r models.BarrelRepair
	err := row.Scan(
		&r.ID, &r.BarrelID, &r.DamageID, &r.Type, &r.AssignedTo, &r.AssignedBy, &r.Status,
		&r.StartedAt, &r.CompletedAt, &r.ApprovedBy, &r.ApprovedAt, &r.RejectedBy, &r.RejectedAt, &r.RejectionReason,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RepairRepository) Create(ctx context.Context, rep *models.BarrelRepair) error {
	query := `
		INSERT INTO barrel_repairs (
			id, barrel_id, damage_id, type, assigned_to, assigned_by, status,
			started_at, completed_at, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.DB.Exec(ctx, query,
		rep.ID, rep.BarrelID, rep.DamageID, rep.Type, rep.AssignedTo, rep.AssignedBy, rep.Status,
		rep.StartedAt, rep.CompletedAt, rep.ApprovedBy, rep.ApprovedAt, rep.RejectedBy, rep.RejectedAt, rep.RejectionReason,
		rep.CreatedAt, rep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create repair: %w", err)
	}
	return nil
}

func (r *RepairRepository) workLog(ctx context.Context, repairID string) ([]models.WorkLogEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT seq, step, note, actor, created_at
		FROM barrel_repair_steps
		WHERE repair_id = $1
		ORDER BY seq ASC
	`, repairID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.WorkLogEntry{}
	for rows.Next() {
		var e models.WorkLogEntry
		if err := rows.Scan(&e.Seq, &e.Step, &e.Note, &e.Actor, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the workflow with its full work log.
func (r *RepairRepository) Get(ctx context.Context, id string) (*models.BarrelRepair, error) {
	rep, err := scanRepair(r.DB.QueryRow(ctx, `SELECT `+repairColumns+` FROM barrel_repairs WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "repair", id)
	}
	if rep.WorkLog, err = r.workLog(ctx, id); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *RepairRepository) LatestByDamage(ctx context.Context, damageID string) (*models.BarrelRepair, error) {
	query := `SELECT ` + repairColumns + ` FROM barrel_repairs WHERE damage_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	rep, err := scanRepair(r.DB.QueryRow(ctx, query, damageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rep.WorkLog, err = r.workLog(ctx, rep.ID); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *RepairRepository) list(ctx context.Context, query string, args ...any) ([]*models.BarrelRepair, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var repairs []*models.BarrelRepair
	for rows.Next() {
		rep, err := scanRepair(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		repairs = append(repairs, rep)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Work logs are loaded after the cursor is closed; a tx allows one at a time.
	for _, rep := range repairs {
		if rep.WorkLog, err = r.workLog(ctx, rep.ID); err != nil {
			return nil, err
		}
	}
	return repairs, nil
}

// ListByDamage returns every attempt on a report in assignment order.
func (r *RepairRepository) ListByDamage(ctx context.Context, damageID string) ([]*models.BarrelRepair, error) {
	return r.list(ctx, `SELECT `+repairColumns+` FROM barrel_repairs WHERE damage_id = $1 ORDER BY created_at ASC, id`, damageID)
}

func (r *RepairRepository) ListByAssignee(ctx context.Context, assignee string) ([]*models.BarrelRepair, error) {
	return r.list(ctx, `SELECT `+repairColumns+` FROM barrel_repairs WHERE assigned_to = $1 ORDER BY created_at DESC, id`, assignee)
}

// TransitionStatus is a compare-and-set on status. Zero rows means another
// writer moved the workflow first.
func (r *RepairRepository) TransitionStatus(ctx context.Context, id string, from, to models.RepairStatus, patch models.RepairPatch, at time.Time) (*models.BarrelRepair, error) {
	query := `
		UPDATE barrel_repairs SET
			status = $3,
			started_at = COALESCE($4, started_at),
			completed_at = COALESCE($5, completed_at),
			approved_by = COALESCE($6, approved_by),
			approved_at = COALESCE($7, approved_at),
			rejected_by = COALESCE($8, rejected_by),
			rejected_at = COALESCE($9, rejected_at),
			rejection_reason = COALESCE($10, rejection_reason),
			updated_at = $11
		WHERE id = $1 AND status = $2
		RETURNING ` + repairColumns
	rep, err := scanRepair(r.DB.QueryRow(ctx, query,
		id, from, to,
		patch.StartedAt, patch.CompletedAt, patch.ApprovedBy, patch.ApprovedAt,
		patch.RejectedBy, patch.RejectedAt, patch.RejectionReason, at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, apperr.ErrStaleState.WithMessagef("repair %s is no longer %s", id, from)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition repair: %w", err)
	}
	if rep.WorkLog, err = r.workLog(ctx, id); err != nil {
		return nil, err
	}
	return rep, nil
}

// AppendWorkLog assigns the next sequence number and stores the entry.
func (r *RepairRepository) AppendWorkLog(ctx context.Context, repairID string, entry *models.WorkLogEntry) error {
	query := `
		INSERT INTO barrel_repair_steps (repair_id, seq, step, note, actor, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM barrel_repair_steps WHERE repair_id = $1
		RETURNING seq
	`
	err := r.DB.QueryRow(ctx, query, repairID, entry.Step, entry.Note, entry.Actor, entry.Timestamp).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("failed to append work log: %w", err)
	}
	return nil
}
