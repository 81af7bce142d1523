package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/lifecycle"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
)

// DamageService is damage intake: reporting defects, routing them to a
// remediation type and resolving them once the repair is approved.
type DamageService struct {
	*Engine
}

func NewDamageService(engine *Engine) *DamageService {
	return &DamageService{Engine: engine}
}

// Assignment is the result of routing a report: the updated report and the
// repair workflow it spawned.
type Assignment struct {
	Damage *models.BarrelDamage `json:"damage"`
	Repair *models.BarrelRepair `json:"repair"`
}

func latestRepairStatus(ctx context.Context, tx repositories.Tx, damageID string) (models.RepairStatus, error) {
	latest, err := tx.Repairs().LatestByDamage(ctx, damageID)
	if err != nil || latest == nil {
		return "", err
	}
	return latest.Status, nil
}

// lockDamage loads a report and its barrel under the barrel's lock, re-reading
// the report once the lock is held.
func lockDamage(ctx context.Context, tx repositories.Tx, id string) (*models.BarrelDamage, *models.Barrel, error) {
	d, err := tx.Damages().Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	b, err := lockBarrel(ctx, tx, d.BarrelID)
	if err != nil {
		return nil, nil, err
	}
	if d, err = tx.Damages().Get(ctx, id); err != nil {
		return nil, nil, err
	}
	return d, b, nil
}

// ReportDamage opens a report on a barrel and marks the barrel damaged. Only
// one report per barrel may be active at a time.
func (s *DamageService) ReportDamage(ctx context.Context, req models.ReportDamageRequest, actor models.Actor) (*models.BarrelDamage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req.Source == "" {
		req.Source = models.DamageSourceField
	}
	if !req.Source.Valid() {
		return nil, apperr.ErrInvalidField.WithMessagef("unknown source %q", req.Source)
	}
	if !req.Severity.Valid() {
		return nil, apperr.ErrInvalidField.WithMessagef("unknown severity %q", req.Severity)
	}
	if err := models.ValidateDamageFields(req.DamageType, req.LumbPercent); err != nil {
		return nil, err
	}

	var out *models.BarrelDamage
	err := s.run(ctx, "damage.report", func(tx repositories.Tx, fx *effects) error {
		b, err := lockBarrel(ctx, tx, req.BarrelID)
		if err != nil {
			return err
		}
		active, err := tx.Damages().GetActiveByBarrel(ctx, b.ID)
		if err != nil {
			return err
		}
		guard := lifecycle.ReportContext{BarrelStatus: b.Status, HasActiveReport: active != nil}
		if active != nil {
			guard.ActiveReportID = active.ID
		}
		if err := lifecycle.CanReportDamage(guard).Error(); err != nil {
			return err
		}

		now := s.Now()
		d := &models.BarrelDamage{
			ID:          s.NewID(),
			BarrelID:    b.ID,
			ReportedBy:  actor.ID,
			Source:      req.Source,
			DamageType:  req.DamageType,
			LumbPercent: copyFloat(req.LumbPercent),
			Severity:    req.Severity,
			Status:      models.DamageStatusOpen,
			Remarks:     strings.TrimSpace(req.Remarks),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Damages().Create(ctx, d); err != nil {
			return err
		}

		b.DamageType = d.DamageType
		b.LumbPercent = copyFloat(d.LumbPercent)
		if err := s.advanceLifecycle(ctx, tx, fx, b, models.BarrelStatusDamaged, models.ConditionDamaged, actor, now); err != nil {
			return err
		}
		if _, err := s.notify(ctx, tx, fx, models.SendNotificationRequest{
			Type:     models.NotifyDamageReported,
			Target:   models.Target{RecipientRole: models.RoleSupervisor},
			Title:    "Damage reported on barrel " + b.Code,
			Message:  d.Remarks,
			Priority: d.Severity,
			Data:     map[string]any{"barrel_id": b.ID, "damage_id": d.ID, "damage_type": string(d.DamageType)},
		}, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditCreate,
			EntityType: models.EntityDamage,
			EntityID:   d.ID,
			Details: map[string]any{
				"barrel_id":   b.ID,
				"damage_type": string(d.DamageType),
				"severity":    string(d.Severity),
				"source":      string(d.Source),
			},
			ResponseStatus: http.StatusCreated,
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityDamage, models.AuditCreate)
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("damage reported", "component", "damage", "damage_id", out.ID, "barrel_id", out.BarrelID)
	return out, nil
}

// Assign routes a report to a remediation type and a worker, creating a new
// repair workflow. The barrel moves into repair at the matching bay.
func (s *DamageService) Assign(ctx context.Context, id string, req models.AssignDamageRequest, actor models.Actor) (*Assignment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !req.RepairType.Valid() {
		return nil, apperr.ErrInvalidField.WithMessagef("unknown repair_type %q", req.RepairType)
	}
	req.AssignedTo = strings.TrimSpace(req.AssignedTo)
	if req.AssignedTo == "" {
		return nil, apperr.ErrInvalidField.WithMessage("assigned_to is required")
	}

	var out *Assignment
	err := s.run(ctx, "damage.assign", func(tx repositories.Tx, fx *effects) error {
		d, b, err := lockDamage(ctx, tx, id)
		if err != nil {
			return err
		}
		latest, err := latestRepairStatus(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		if err := lifecycle.CanAssign(lifecycle.AssignContext{DamageStatus: d.Status, LatestRepairStatus: latest}).Error(); err != nil {
			return err
		}

		now := s.Now()
		d.Status = models.DamageStatusAssigned
		d.AssignedTo = req.RepairType
		d.AssignedBy = actor.ID
		d.AssignedAt = &now
		d.UpdatedAt = now
		if err := tx.Damages().Update(ctx, d); err != nil {
			return err
		}

		r := &models.BarrelRepair{
			ID:         s.NewID(),
			BarrelID:   b.ID,
			DamageID:   d.ID,
			Type:       req.RepairType,
			AssignedTo: req.AssignedTo,
			AssignedBy: actor.ID,
			Status:     models.RepairStatusAssigned,
			WorkLog:    []models.WorkLogEntry{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Repairs().Create(ctx, r); err != nil {
			return err
		}

		if err := s.relocate(ctx, tx, b, lifecycle.BayFor(req.RepairType), models.MovementMove, "assigned for "+string(req.RepairType), actor, now); err != nil {
			return err
		}
		if err := s.advanceLifecycle(ctx, tx, fx, b, models.BarrelStatusRepair, lifecycle.ConditionFor(req.RepairType), actor, now); err != nil {
			return err
		}
		if _, err := s.notify(ctx, tx, fx, models.SendNotificationRequest{
			Type:     models.NotifyRepairAssigned,
			Target:   models.Target{RecipientID: req.AssignedTo},
			Title:    "Repair assigned for barrel " + b.Code,
			Message:  string(req.RepairType),
			Priority: d.Severity,
			Data:     map[string]any{"barrel_id": b.ID, "damage_id": d.ID, "repair_id": r.ID},
		}, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditAssign,
			EntityType: models.EntityDamage,
			EntityID:   d.ID,
			Details: map[string]any{
				"repair_id":   r.ID,
				"repair_type": string(r.Type),
				"assigned_to": r.AssignedTo,
			},
		}, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:         models.AuditCreate,
			EntityType:     models.EntityRepair,
			EntityID:       r.ID,
			Details:        map[string]any{"damage_id": d.ID, "barrel_id": b.ID},
			ResponseStatus: http.StatusCreated,
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityDamage, models.AuditAssign)
		fx.transition(models.EntityRepair, models.AuditCreate)
		out = &Assignment{Damage: d, Repair: r}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("damage assigned", "component", "damage",
		"damage_id", out.Damage.ID, "repair_id", out.Repair.ID, "repair_type", out.Repair.Type)
	return out, nil
}

// Resolve closes a report whose latest repair has been approved. Approval
// already resolves its report, so this mostly reports why a report is still
// open.
func (s *DamageService) Resolve(ctx context.Context, id string, actor models.Actor) (*models.BarrelDamage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var out *models.BarrelDamage
	err := s.run(ctx, "damage.resolve", func(tx repositories.Tx, fx *effects) error {
		d, _, err := lockDamage(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.resolveReport(ctx, tx, fx, d, actor, s.Now()); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// resolveReport is the only path that clears a barrel's active report.
func (e *Engine) resolveReport(ctx context.Context, tx repositories.Tx, fx *effects, d *models.BarrelDamage, actor models.Actor, now time.Time) error {
	latest, err := latestRepairStatus(ctx, tx, d.ID)
	if err != nil {
		return err
	}
	if err := lifecycle.CanResolve(lifecycle.ResolveContext{DamageStatus: d.Status, LatestRepairStatus: latest}).Error(); err != nil {
		return err
	}
	d.Status = models.DamageStatusResolved
	d.ResolvedBy = actor.ID
	d.ResolvedAt = &now
	d.UpdatedAt = now
	if err := tx.Damages().Update(ctx, d); err != nil {
		return err
	}
	if _, err := e.record(ctx, tx, actor, AuditEvent{
		Action:     models.AuditResolve,
		EntityType: models.EntityDamage,
		EntityID:   d.ID,
		Details:    map[string]any{"barrel_id": d.BarrelID},
	}, now); err != nil {
		return err
	}
	fx.transition(models.EntityDamage, models.AuditResolve)
	return nil
}

func (s *DamageService) Get(ctx context.Context, id string) (*models.BarrelDamage, error) {
	var out *models.BarrelDamage
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Damages().Get(ctx, id)
		return err
	})
	return out, err
}

// ListByBarrel returns every report filed against a barrel, newest first.
func (s *DamageService) ListByBarrel(ctx context.Context, barrelID string) ([]*models.BarrelDamage, error) {
	var out []*models.BarrelDamage
	err := s.view(ctx, func(tx repositories.Tx) error {
		if _, err := tx.Barrels().Get(ctx, barrelID); err != nil {
			return err
		}
		var err error
		out, err = tx.Damages().ListByBarrel(ctx, barrelID)
		return err
	})
	return out, err
}

// ListOpen returns every active report, oldest first.
func (s *DamageService) ListOpen(ctx context.Context) ([]*models.BarrelDamage, error) {
	var out []*models.BarrelDamage
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Damages().ListActive(ctx)
		return err
	})
	return out, err
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
