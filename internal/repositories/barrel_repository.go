package repositories

import (
	"context"
	"fmt"
	"strings"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type BarrelRepository struct {
	DB DBTX
}

func NewBarrelRepository(db DBTX) *BarrelRepository {
	return &BarrelRepository{DB: db}
}

const barrelColumns = `
	id, code, capacity, current_volume, status, condition, damage_type, lumb_percent,
	current_location, last_known_location, base_weight, empty_weight, gross_weight,
	material, batch_number, supplier, grade, color, manufacture_date, expiry_date,
	notes, created_by, last_updated_by, created_at, updated_at`

func scanBarrel(row pgx.Row) (*models.Barrel, error) {
	var b models.Barrel
	err := row.Scan(
		&b.ID, &b.Code, &b.Capacity, &b.CurrentVolume, &b.Status, &b.Condition, &b.DamageType, &b.LumbPercent,
		&b.CurrentLocation, &b.LastKnownLocation, &b.BaseWeight, &b.EmptyWeight, &b.GrossWeight,
		&b.Material.Material, &b.Material.BatchNumber, &b.Material.Supplier, &b.Material.Grade, &b.Material.Color,
		&b.ManufactureDate, &b.ExpiryDate,
		&b.Notes, &b.CreatedBy, &b.LastUpdatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a new barrel. A taken code maps to ErrDuplicateCode.
func (r *BarrelRepository) Create(ctx context.Context, b *models.Barrel) error {
	query := `
		INSERT INTO barrels (
			id, code, capacity, current_volume, status, condition, damage_type, lumb_percent,
			current_location, last_known_location, base_weight, empty_weight, gross_weight,
			material, batch_number, supplier, grade, color, manufacture_date, expiry_date,
			notes, created_by, last_updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`
	_, err := r.DB.Exec(ctx, query,
		b.ID, b.Code, b.Capacity, b.CurrentVolume, b.Status, b.Condition, b.DamageType, b.LumbPercent,
		b.CurrentLocation, b.LastKnownLocation, b.BaseWeight, b.EmptyWeight, b.GrossWeight,
		b.Material.Material, b.Material.BatchNumber, b.Material.Supplier, b.Material.Grade, b.Material.Color,
		b.ManufactureDate, b.ExpiryDate,
		b.Notes, b.CreatedBy, b.LastUpdatedBy, b.CreatedAt, b.UpdatedAt,
	)
	if uniqueViolation(err, "barrels_code_key") {
		return apperr.ErrDuplicateCode.WithMessagef("barrel code %s already exists", b.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to create barrel: %w", err)
	}
	return nil
}

func (r *BarrelRepository) Get(ctx context.Context, id string) (*models.Barrel, error) {
	b, err := scanBarrel(r.DB.QueryRow(ctx, `SELECT `+barrelColumns+` FROM barrels WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "barrel", id)
	}
	return b, nil
}

// GetForUpdate takes the row lock that serializes every mutation of one barrel.
func (r *BarrelRepository) GetForUpdate(ctx context.Context, id string) (*models.Barrel, error) {
	b, err := scanBarrel(r.DB.QueryRow(ctx, `SELECT `+barrelColumns+` FROM barrels WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "barrel", id)
	}
	return b, nil
}

func (r *BarrelRepository) GetByCode(ctx context.Context, code string) (*models.Barrel, error) {
	b, err := scanBarrel(r.DB.QueryRow(ctx, `SELECT `+barrelColumns+` FROM barrels WHERE code = $1`, code))
	if err != nil {
		return nil, notFound(err, "barrel", code)
	}
	return b, nil
}

// Update writes every mutable column. Code and creation fields never change.
func (r *BarrelRepository) Update(ctx context.Context, b *models.Barrel) error {
	query := `
		UPDATE barrels SET
			capacity = $2, current_volume = $3, status = $4, condition = $5,
			damage_type = $6, lumb_percent = $7, current_location = $8, last_known_location = $9,
			base_weight = $10, empty_weight = $11, gross_weight = $12,
			material = $13, batch_number = $14, supplier = $15, grade = $16, color = $17,
			manufacture_date = $18, expiry_date = $19, notes = $20,
			last_updated_by = $21, updated_at = $22
		WHERE id = $1
	`
	tag, err := r.DB.Exec(ctx, query,
		b.ID, b.Capacity, b.CurrentVolume, b.Status, b.Condition,
		b.DamageType, b.LumbPercent, b.CurrentLocation, b.LastKnownLocation,
		b.BaseWeight, b.EmptyWeight, b.GrossWeight,
		b.Material.Material, b.Material.BatchNumber, b.Material.Supplier, b.Material.Grade, b.Material.Color,
		b.ManufactureDate, b.ExpiryDate, b.Notes,
		b.LastUpdatedBy, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update barrel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("barrel", b.ID)
	}
	return nil
}

// List returns barrels newest first, narrowed by the non-empty filter fields.
func (r *BarrelRepository) List(ctx context.Context, filter models.BarrelFilter) ([]*models.Barrel, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Condition != "" {
		add("condition = $%d", filter.Condition)
	}
	if filter.Location != "" {
		add("current_location = $%d", filter.Location)
	}

	query := `SELECT ` + barrelColumns + ` FROM barrels`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var barrels []*models.Barrel
	for rows.Next() {
		b, err := scanBarrel(rows)
		if err != nil {
			return nil, err
		}
		barrels = append(barrels, b)
	}
	return barrels, rows.Err()
}
