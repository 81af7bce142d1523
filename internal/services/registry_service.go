package services

import (
	"context"
	"net/http"
	"strings"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/cache"
	"barrel-backend/internal/lifecycle"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
)

// RegistryService is the container registry: the single source of truth for
// a barrel's identity, volume, location, status and condition.
type RegistryService struct {
	*Engine
	Codes       *models.CodeValidator
	MaxCapacity float64
}

func NewRegistryService(engine *Engine, codes *models.CodeValidator, maxCapacity float64) *RegistryService {
	if maxCapacity <= 0 {
		maxCapacity = models.DefaultMaxCapacity
	}
	return &RegistryService{Engine: engine, Codes: codes, MaxCapacity: maxCapacity}
}

// Register creates a barrel at its starting location with zero volume and
// appends the matching "in" movement.
func (s *RegistryService) Register(ctx context.Context, req models.RegisterBarrelRequest, actor models.Actor) (*models.Barrel, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	code, err := s.Codes.Validate(req.Code)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateCapacity(req.Capacity, s.MaxCapacity); err != nil {
		return nil, err
	}
	location := req.Location
	if location == "" {
		location = models.LocationYard
	}
	if err := lifecycle.CanPlace(location).Error(); err != nil {
		return nil, err
	}

	var out *models.Barrel
	err = s.run(ctx, "registry.register", func(tx repositories.Tx, fx *effects) error {
		now := s.Now()
		b := &models.Barrel{
			ID:                s.NewID(),
			Code:              code,
			Capacity:          req.Capacity,
			Status:            lifecycle.StatusAfterRelocation(models.BarrelStatusInStorage, location),
			Condition:         models.ConditionGood,
			CurrentLocation:   location,
			LastKnownLocation: req.LastKnownLocation,
			BaseWeight:        req.BaseWeight,
			EmptyWeight:       req.EmptyWeight,
			GrossWeight:       req.GrossWeight,
			Material:          req.Material,
			ManufactureDate:   req.ManufactureDate,
			ExpiryDate:        req.ExpiryDate,
			Notes:             req.Notes,
			CreatedBy:         actor.ID,
			LastUpdatedBy:     actor.ID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := models.ValidateBarrel(b, now); err != nil {
			return err
		}
		if err := tx.Barrels().Create(ctx, b); err != nil {
			return err
		}
		if err := s.appendMovement(ctx, tx, &models.BarrelMovement{
			BarrelID:   b.ID,
			Type:       models.MovementIn,
			ToLocation: location,
			Note:       "registered",
		}, actor, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditCreate,
			EntityType: models.EntityBarrel,
			EntityID:   b.ID,
			Details: map[string]any{
				"code":     b.Code,
				"capacity": b.Capacity,
				"location": string(location),
			},
			ResponseStatus: http.StatusCreated,
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityBarrel, models.AuditCreate)
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("barrel registered", "component", "registry", "barrel_id", out.ID, "code", out.Code)
	return out, nil
}

// AdjustVolume applies a signed delta under the barrel's lock and appends an
// in/out movement. The result must stay within [0, capacity].
func (s *RegistryService) AdjustVolume(ctx context.Context, id string, req models.AdjustVolumeRequest, actor models.Actor) (*models.Barrel, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := models.ValidateQuantity("delta", req.Delta); err != nil {
		return nil, err
	}
	if req.Delta == 0 {
		return nil, apperr.ErrInvalidField.WithMessage("delta must not be zero")
	}

	var out *models.Barrel
	err := s.run(ctx, "registry.adjust_volume", func(tx repositories.Tx, fx *effects) error {
		b, err := lockBarrel(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.CanAdjustVolume(b.Status).Error(); err != nil {
			return err
		}
		from := b.CurrentVolume
		to := models.AddVolume(from, req.Delta)
		if err := models.ValidateVolume(to, b.Capacity); err != nil {
			return err
		}

		now := s.Now()
		b.CurrentVolume = to
		if err := s.saveBarrel(ctx, tx, fx, b, actor, now); err != nil {
			return err
		}
		typ := models.MovementIn
		if req.Delta < 0 {
			typ = models.MovementOut
		}
		if err := s.appendMovement(ctx, tx, &models.BarrelMovement{
			BarrelID:     b.ID,
			Type:         typ,
			VolumeDelta:  req.Delta,
			FromLocation: b.CurrentLocation,
			ToLocation:   b.CurrentLocation,
			Note:         req.Note,
		}, actor, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditUpdate,
			EntityType: models.EntityBarrel,
			EntityID:   b.ID,
			Details: map[string]any{
				"field": "current_volume",
				"from":  from,
				"to":    to,
				"delta": req.Delta,
			},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityBarrel, models.AuditUpdate)
		out = b
		return nil
	})
	return out, err
}

// Relocate moves a barrel and appends a move entry. Barrels in ordinary
// service become in-storage in the yard and in-use anywhere else.
func (s *RegistryService) Relocate(ctx context.Context, id string, req models.RelocateRequest, actor models.Actor) (*models.Barrel, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var out *models.Barrel
	err := s.run(ctx, "registry.relocate", func(tx repositories.Tx, fx *effects) error {
		b, err := lockBarrel(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.CanRelocate(b.Status, b.CurrentLocation, req.ToLocation).Error(); err != nil {
			return err
		}

		now := s.Now()
		from := b.CurrentLocation
		if err := s.relocate(ctx, tx, b, req.ToLocation, models.MovementMove, "relocated", actor, now); err != nil {
			return err
		}
		if req.LastKnownLocation != "" {
			b.LastKnownLocation = req.LastKnownLocation
		}
		if status := lifecycle.StatusAfterRelocation(b.Status, req.ToLocation); status != b.Status {
			err = s.advanceLifecycle(ctx, tx, fx, b, status, b.Condition, actor, now)
		} else {
			err = s.saveBarrel(ctx, tx, fx, b, actor, now)
		}
		if err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditUpdate,
			EntityType: models.EntityBarrel,
			EntityID:   b.ID,
			Details: map[string]any{
				"field":  "current_location",
				"from":   string(from),
				"to":     string(req.ToLocation),
				"status": string(b.Status),
			},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityBarrel, models.AuditUpdate)
		out = b
		return nil
	})
	return out, err
}

// Scrap retires a barrel to the scrap yard. A barrel with an active damage
// report must have it resolved first.
func (s *RegistryService) Scrap(ctx context.Context, id, reason string, actor models.Actor) (*models.Barrel, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.ErrMissingReason.WithMessage("a scrap reason is required")
	}

	var out *models.Barrel
	err := s.run(ctx, "registry.scrap", func(tx repositories.Tx, fx *effects) error {
		b, err := lockBarrel(ctx, tx, id)
		if err != nil {
			return err
		}
		active, err := tx.Damages().GetActiveByBarrel(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := lifecycle.CanScrap(b.Status, active != nil).Error(); err != nil {
			return err
		}

		now := s.Now()
		if err := s.relocate(ctx, tx, b, models.LocationScrapYard, models.MovementMove, reason, actor, now); err != nil {
			return err
		}
		if err := s.advanceLifecycle(ctx, tx, fx, b, models.BarrelStatusScrap, models.ConditionScrap, actor, now); err != nil {
			return err
		}
		if _, err := s.notify(ctx, tx, fx, models.SendNotificationRequest{
			Type:     models.NotifyBarrelScrapped,
			Target:   models.Target{RecipientRole: models.RoleAdmin},
			Title:    "Barrel " + b.Code + " scrapped",
			Message:  reason,
			Priority: models.SeverityMedium,
			Data:     map[string]any{"barrel_id": b.ID},
		}, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditScrap,
			EntityType: models.EntityBarrel,
			EntityID:   b.ID,
			Details:    map[string]any{"reason": reason},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityBarrel, models.AuditScrap)
		out = b
		return nil
	})
	return out, err
}

// Dispose is the end of a barrel's life. Only scrapped barrels qualify; any
// remaining volume leaves through a disposal movement.
func (s *RegistryService) Dispose(ctx context.Context, id string, actor models.Actor) (*models.Barrel, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var out *models.Barrel
	err := s.run(ctx, "registry.dispose", func(tx repositories.Tx, fx *effects) error {
		b, err := lockBarrel(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.CanDispose(b.Status).Error(); err != nil {
			return err
		}

		now := s.Now()
		remaining := b.CurrentVolume
		if err := s.appendMovement(ctx, tx, &models.BarrelMovement{
			BarrelID:     b.ID,
			Type:         models.MovementDisposal,
			VolumeDelta:  -remaining,
			FromLocation: b.CurrentLocation,
			Note:         "disposed",
		}, actor, now); err != nil {
			return err
		}
		b.CurrentVolume = 0
		if err := s.advanceLifecycle(ctx, tx, fx, b, models.BarrelStatusDisposed, b.Condition, actor, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditDispose,
			EntityType: models.EntityBarrel,
			EntityID:   b.ID,
			Details:    map[string]any{"disposed_volume": remaining},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityBarrel, models.AuditDispose)
		out = b
		return nil
	})
	return out, err
}

// UpdateAttributes patches descriptive attributes. Status, condition, volume
// and location are not reachable from here.
func (s *RegistryService) UpdateAttributes(ctx context.Context, id string, req models.UpdateBarrelAttrsRequest, actor models.Actor) (*models.Barrel, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var out *models.Barrel
	err := s.run(ctx, "registry.update_attributes", func(tx repositories.Tx, fx *effects) error {
		b, err := lockBarrel(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status == models.BarrelStatusDisposed {
			return apperr.ErrInvalidTransition.WithMessage("barrel is disposed")
		}

		var changed []string
		if req.LumbPercent != nil {
			active, err := tx.Damages().GetActiveByBarrel(ctx, b.ID)
			if err != nil {
				return err
			}
			if active != nil {
				return apperr.ErrActiveReportExists.WithMessage("lumb_percent follows the active damage report")
			}
			b.LumbPercent = req.LumbPercent
			changed = append(changed, "lumb_percent")
		}
		if req.LastKnownLocation != nil {
			b.LastKnownLocation = *req.LastKnownLocation
			changed = append(changed, "last_known_location")
		}
		if req.Material != nil {
			b.Material = *req.Material
			changed = append(changed, "material")
		}
		if req.BaseWeight != nil {
			b.BaseWeight = req.BaseWeight
			changed = append(changed, "base_weight")
		}
		if req.EmptyWeight != nil {
			b.EmptyWeight = req.EmptyWeight
			changed = append(changed, "empty_weight")
		}
		if req.GrossWeight != nil {
			b.GrossWeight = req.GrossWeight
			changed = append(changed, "gross_weight")
		}
		if req.ManufactureDate != nil {
			b.ManufactureDate = req.ManufactureDate
			changed = append(changed, "manufacture_date")
		}
		if req.ExpiryDate != nil {
			b.ExpiryDate = req.ExpiryDate
			changed = append(changed, "expiry_date")
		}
		if req.Notes != nil {
			b.Notes = *req.Notes
			changed = append(changed, "notes")
		}
		if len(changed) == 0 {
			return apperr.ErrInvalidField.WithMessage("no attributes to update")
		}

		now := s.Now()
		if err := s.saveBarrel(ctx, tx, fx, b, actor, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditUpdate,
			EntityType: models.EntityBarrel,
			EntityID:   b.ID,
			Details:    map[string]any{"fields": changed},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityBarrel, models.AuditUpdate)
		out = b
		return nil
	})
	return out, err
}

func (s *RegistryService) Get(ctx context.Context, id string) (*models.Barrel, error) {
	var out *models.Barrel
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Barrels().Get(ctx, id)
		return err
	})
	return out, err
}

// GetByCode looks a barrel up by its human-readable code, read-through cached.
// The fill lease is taken before the read so a concurrent commit wins.
func (s *RegistryService) GetByCode(ctx context.Context, code string) (*models.Barrel, error) {
	code = models.NormalizeCode(code)
	if b, ok := cache.GetCachedBarrel(ctx, code); ok {
		return b, nil
	}
	lease := cache.ReserveBarrel(ctx, code)
	var out *models.Barrel
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Barrels().GetByCode(ctx, code)
		return err
	})
	if err != nil {
		return nil, err
	}
	cache.FillBarrel(ctx, lease, out)
	return out, nil
}

func (s *RegistryService) List(ctx context.Context, filter models.BarrelFilter) ([]*models.Barrel, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.ErrInvalidField.WithMessagef("unknown status %q", filter.Status)
	}
	if filter.Condition != "" && !filter.Condition.Valid() {
		return nil, apperr.ErrInvalidField.WithMessagef("unknown condition %q", filter.Condition)
	}
	if filter.Location != "" && !filter.Location.Valid() {
		return nil, apperr.ErrInvalidField.WithMessagef("unknown location %q", filter.Location)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	var out []*models.Barrel
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Barrels().List(ctx, filter)
		return err
	})
	return out, err
}
