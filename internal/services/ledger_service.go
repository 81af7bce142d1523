package services

import (
	"context"
	"net/http"

	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
)

// LedgerService exposes the append-only movement ledger. There is no update
// or delete; corrections are compensating entries.
type LedgerService struct {
	*Engine
}

func NewLedgerService(engine *Engine) *LedgerService {
	return &LedgerService{Engine: engine}
}

// Append records a compensating entry. It annotates history only and leaves
// the barrel's volume and location as they are.
func (s *LedgerService) Append(ctx context.Context, barrelID string, req models.AppendMovementRequest, actor models.Actor) (*models.BarrelMovement, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var out *models.BarrelMovement
	err := s.run(ctx, "ledger.append", func(tx repositories.Tx, fx *effects) error {
		if _, err := lockBarrel(ctx, tx, barrelID); err != nil {
			return err
		}
		now := s.Now()
		m := &models.BarrelMovement{
			BarrelID:     barrelID,
			Type:         req.Type,
			VolumeDelta:  req.VolumeDelta,
			FromLocation: req.FromLocation,
			ToLocation:   req.ToLocation,
			Note:         req.Note,
		}
		if err := s.appendMovement(ctx, tx, m, actor, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditCreate,
			EntityType: models.EntityMovement,
			EntityID:   m.ID,
			Details: map[string]any{
				"barrel_id":    barrelID,
				"type":         string(m.Type),
				"volume_delta": m.VolumeDelta,
				"note":         m.Note,
			},
			ResponseStatus: http.StatusCreated,
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityMovement, models.AuditCreate)
		out = m
		return nil
	})
	return out, err
}

// ListByBarrel returns a barrel's movements in append order.
func (s *LedgerService) ListByBarrel(ctx context.Context, barrelID string, limit, offset int) ([]*models.BarrelMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var out []*models.BarrelMovement
	err := s.view(ctx, func(tx repositories.Tx) error {
		if _, err := tx.Barrels().Get(ctx, barrelID); err != nil {
			return err
		}
		var err error
		out, err = tx.Movements().ListByBarrel(ctx, barrelID, limit, offset)
		return err
	})
	return out, err
}
