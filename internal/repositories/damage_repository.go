package repositories

import (
	"context"
	"errors"
	"fmt"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type DamageRepository struct {
	DB DBTX
}

func NewDamageRepository(db DBTX) *DamageRepository {
	return &DamageRepository{DB: db}
}

const damageColumns = `
	id, barrel_id, reported_by, source, damage_type, lumb_percent, severity, status, remarks,
	assigned_to, assigned_by, assigned_at, resolved_by, resolved_at, created_at, updated_at`

// activeDamageIndex backs the one-active-report-per-barrel rule.
const activeDamageIndex = "uq_barrel_damages_active"

func scanDamage(row pgx.Row) (*models.BarrelDamage, error) {
	var d models.BarrelDamage
	err := row.Scan(
		&d.ID, &d.BarrelID, &d.ReportedBy, &d.Source, &d.DamageType, &d.LumbPercent, &d.Severity, &d.Status, &d.Remarks,
		&d.AssignedTo, &d.AssignedBy, &d.AssignedAt, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DamageRepository) Create(ctx context.Context, d *models.BarrelDamage) error {
	query := `
		INSERT INTO barrel_damages (
			id, barrel_id, reported_by, source, damage_type, lumb_percent, severity, status, remarks,
			assigned_to, assigned_by, assigned_at, resolved_by, resolved_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.DB.Exec(ctx, query,
		d.ID, d.BarrelID, d.ReportedBy, d.Source, d.DamageType, d.LumbPercent, d.Severity, d.Status, d.Remarks,
		d.AssignedTo, d.AssignedBy, d.AssignedAt, d.ResolvedBy, d.ResolvedAt, d.CreatedAt, d.UpdatedAt,
	)
	if uniqueViolation(err, activeDamageIndex) {
		return apperr.ErrActiveReportExists.WithMessagef("barrel %s already has an active damage report", d.BarrelID)
	}
	if err != nil {
		return fmt.Errorf("failed to create damage report: %w", err)
	}
	return nil
}

func (r *DamageRepository) Get(ctx context.Context, id string) (*models.BarrelDamage, error) {
	d, err := scanDamage(r.DB.QueryRow(ctx, `SELECT `+damageColumns+` FROM barrel_damages WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "damage report", id)
	}
	return d, nil
}

func (r *DamageRepository) GetActiveByBarrel(ctx context.Context, barrelID string) (*models.BarrelDamage, error) {
	query := `SELECT ` + damageColumns + ` FROM barrel_damages WHERE barrel_id = $1 AND status <> 'resolved'`
	d, err := scanDamage(r.DB.QueryRow(ctx, query, barrelID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DamageRepository) Update(ctx context.Context, d *models.BarrelDamage) error {
	query := `
		UPDATE barrel_damages SET
			status = $2, remarks = $3, assigned_to = $4, assigned_by = $5, assigned_at = $6,
			resolved_by = $7, resolved_at = $8, updated_at = $9
		WHERE id = $1
	`
	tag, err := r.DB.Exec(ctx, query,
		d.ID, d.Status, d.Remarks, d.AssignedTo, d.AssignedBy, d.AssignedAt,
		d.ResolvedBy, d.ResolvedAt, d.UpdatedAt,
	)
	if uniqueViolation(err, activeDamageIndex) {
		return apperr.ErrActiveReportExists.WithMessagef("barrel %s already has an active damage report", d.BarrelID)
	}
	if err != nil {
		return fmt.Errorf("failed to update damage report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("damage report", d.ID)
	}
	return nil
}

func (r *DamageRepository) query(ctx context.Context, query string, args ...any) ([]*models.BarrelDamage, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var damages []*models.BarrelDamage
	for rows.Next() {
		d, err := scanDamage(rows)
		if err != nil {
			return nil, err
		}
		damages = append(damages, d)
	}
	return damages, rows.Err()
}

// ListByBarrel returns the barrel's report history, newest first.
func (r *DamageRepository) ListByBarrel(ctx context.Context, barrelID string) ([]*models.BarrelDamage, error) {
	return r.query(ctx, `SELECT `+damageColumns+` FROM barrel_damages WHERE barrel_id = $1 ORDER BY created_at DESC`, barrelID)
}

// ListActive returns the triage queue, oldest first.
func (r *DamageRepository) ListActive(ctx context.Context) ([]*models.BarrelDamage, error) {
	return r.query(ctx, `SELECT `+damageColumns+` FROM barrel_damages WHERE status <> 'resolved' ORDER BY created_at ASC`)
}
