package repositories

import (
	"context"
	"fmt"

	"barrel-backend/internal/models"
)

// MovementRepository writes the append-only movement ledger. The table
// rejects UPDATE and DELETE at the database level.
type MovementRepository struct {
	DB DBTX
}

func NewMovementRepository(db DBTX) *MovementRepository {
	return &MovementRepository{DB: db}
}

func (r *MovementRepository) Append(ctx context.Context, m *models.BarrelMovement) error {
	query := `
		INSERT INTO barrel_movements (
			id, barrel_id, type, volume_delta, from_location, to_location, note, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.DB.Exec(ctx, query,
		m.ID, m.BarrelID, m.Type, m.VolumeDelta, m.FromLocation, m.ToLocation, m.Note, m.CreatedBy, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// ListByBarrel returns movements in the order they were appended.
func (r *MovementRepository) ListByBarrel(ctx context.Context, barrelID string, limit, offset int) ([]*models.BarrelMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, barrel_id, type, volume_delta, from_location, to_location, note, created_by, created_at
		FROM barrel_movements
		WHERE barrel_id = $1
		ORDER BY seq ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.Query(ctx, query, barrelID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []*models.BarrelMovement
	for rows.Next() {
		var m models.BarrelMovement
		if err := rows.Scan(&m.ID, &m.BarrelID, &m.Type, &m.VolumeDelta, &m.FromLocation, &m.ToLocation, &m.Note, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, &m)
	}
	return movements, rows.Err()
}
