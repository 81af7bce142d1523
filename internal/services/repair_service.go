package services

import (
	"context"
	"strings"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/lifecycle"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
)

// RepairService drives repair workflows through
// assigned -> in-progress -> completed -> approved | rejected.
// Every transition is a compare-and-swap on the stored status.
type RepairService struct {
	*Engine
}

func NewRepairService(engine *Engine) *RepairService {
	return &RepairService{Engine: engine}
}

// lockRepair loads a workflow and its barrel under the barrel's lock.
func lockRepair(ctx context.Context, tx repositories.Tx, id string) (*models.BarrelRepair, *models.Barrel, error) {
	r, err := tx.Repairs().Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	b, err := lockBarrel(ctx, tx, r.BarrelID)
	if err != nil {
		return nil, nil, err
	}
	if r, err = tx.Repairs().Get(ctx, id); err != nil {
		return nil, nil, err
	}
	return r, b, nil
}

// transitionRepair guards and applies one edge of the workflow.
func transitionRepair(ctx context.Context, tx repositories.Tx, r *models.BarrelRepair, to models.RepairStatus, patch models.RepairPatch, now time.Time) (*models.BarrelRepair, error) {
	if err := lifecycle.CanTransitionRepair(r.Status, to).Error(); err != nil {
		return nil, err
	}
	return tx.Repairs().TransitionStatus(ctx, r.ID, r.Status, to, patch, now)
}

// StartWork moves an assigned workflow to in-progress.
func (s *RepairService) StartWork(ctx context.Context, id string, actor models.Actor) (*models.BarrelRepair, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var out *models.BarrelRepair
	err := s.run(ctx, "repair.start", func(tx repositories.Tx, fx *effects) error {
		r, _, err := lockRepair(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.Now()
		updated, err := transitionRepair(ctx, tx, r, models.RepairStatusInProgress, models.RepairPatch{StartedAt: &now}, now)
		if err != nil {
			return err
		}
		d, err := tx.Damages().Get(ctx, r.DamageID)
		if err != nil {
			return err
		}
		d.Status = models.DamageStatusInProgress
		d.UpdatedAt = now
		if err := tx.Damages().Update(ctx, d); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditStart,
			EntityType: models.EntityRepair,
			EntityID:   r.ID,
			Details:    map[string]any{"from": string(r.Status), "to": string(updated.Status)},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityRepair, models.AuditStart)
		out = updated
		return nil
	})
	return out, err
}

// LogStep appends one entry to the work log of an in-progress workflow.
func (s *RepairService) LogStep(ctx context.Context, id string, req models.LogStepRequest, actor models.Actor) (*models.BarrelRepair, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.Step = strings.TrimSpace(req.Step)
	if req.Step == "" {
		return nil, apperr.ErrInvalidField.WithMessage("step is required")
	}
	var out *models.BarrelRepair
	err := s.run(ctx, "repair.log_step", func(tx repositories.Tx, fx *effects) error {
		r, _, err := lockRepair(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.CanLogStep(r.Status).Error(); err != nil {
			return err
		}
		now := s.Now()
		entry := &models.WorkLogEntry{
			Step:      req.Step,
			Note:      req.Note,
			Actor:     actor.ID,
			Timestamp: now,
		}
		if err := tx.Repairs().AppendWorkLog(ctx, r.ID, entry); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditLogStep,
			EntityType: models.EntityRepair,
			EntityID:   r.ID,
			Details:    map[string]any{"seq": entry.Seq, "step": entry.Step},
		}, now); err != nil {
			return err
		}
		if out, err = tx.Repairs().Get(ctx, r.ID); err != nil {
			return err
		}
		fx.transition(models.EntityRepair, models.AuditLogStep)
		return nil
	})
	return out, err
}

// Complete closes the work log and hands the workflow to a supervisor.
func (s *RepairService) Complete(ctx context.Context, id string, actor models.Actor) (*models.BarrelRepair, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var out *models.BarrelRepair
	err := s.run(ctx, "repair.complete", func(tx repositories.Tx, fx *effects) error {
		r, b, err := lockRepair(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.Now()
		updated, err := transitionRepair(ctx, tx, r, models.RepairStatusCompleted, models.RepairPatch{CompletedAt: &now}, now)
		if err != nil {
			return err
		}
		if _, err := s.notify(ctx, tx, fx, models.SendNotificationRequest{
			Type:     models.NotifyRepairCompleted,
			Target:   models.Target{RecipientRole: models.RoleSupervisor},
			Title:    "Repair completed on barrel " + b.Code,
			Message:  "awaiting approval",
			Priority: models.SeverityMedium,
			Data:     map[string]any{"barrel_id": b.ID, "repair_id": r.ID},
		}, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditComplete,
			EntityType: models.EntityRepair,
			EntityID:   r.ID,
			Details:    map[string]any{"steps": len(updated.WorkLog)},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityRepair, models.AuditComplete)
		out = updated
		return nil
	})
	return out, err
}

// Approve accepts a completed repair. The barrel returns to the yard in good
// condition and the damage report is resolved.
func (s *RepairService) Approve(ctx context.Context, id string, actor models.Actor) (*models.BarrelRepair, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var out *models.BarrelRepair
	err := s.run(ctx, "repair.approve", func(tx repositories.Tx, fx *effects) error {
		r, b, err := lockRepair(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.Now()
		updated, err := transitionRepair(ctx, tx, r, models.RepairStatusApproved, models.RepairPatch{
			ApprovedBy: &actor.ID,
			ApprovedAt: &now,
		}, now)
		if err != nil {
			return err
		}

		if err := s.appendMovement(ctx, tx, &models.BarrelMovement{
			BarrelID:     b.ID,
			Type:         models.MovementRepair,
			FromLocation: b.CurrentLocation,
			ToLocation:   models.LocationYard,
			Note:         "repair approved",
		}, actor, now); err != nil {
			return err
		}
		b.CurrentLocation = models.LocationYard
		b.DamageType = models.DamageTypeNone
		b.LumbPercent = nil
		if err := s.advanceLifecycle(ctx, tx, fx, b, models.BarrelStatusInStorage, models.ConditionGood, actor, now); err != nil {
			return err
		}

		d, err := tx.Damages().Get(ctx, r.DamageID)
		if err != nil {
			return err
		}
		if err := s.resolveReport(ctx, tx, fx, d, actor, now); err != nil {
			return err
		}
		if _, err := s.notify(ctx, tx, fx, models.SendNotificationRequest{
			Type:     models.NotifyRepairApproved,
			Target:   models.Target{RecipientID: d.ReportedBy},
			Title:    "Barrel " + b.Code + " is back in service",
			Message:  "repair approved",
			Priority: models.SeverityLow,
			Data:     map[string]any{"barrel_id": b.ID, "damage_id": d.ID, "repair_id": r.ID},
		}, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditApprove,
			EntityType: models.EntityRepair,
			EntityID:   r.ID,
			Details:    map[string]any{"damage_id": d.ID, "barrel_id": b.ID},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityRepair, models.AuditApprove)
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("repair approved", "component", "repair", "repair_id", out.ID, "barrel_id", out.BarrelID)
	return out, nil
}

// Reject sends a completed repair back. The report returns to assigned so a
// fresh workflow can be created; this instance keeps its reason.
func (s *RepairService) Reject(ctx context.Context, id, reason string, actor models.Actor) (*models.BarrelRepair, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.ErrMissingReason.WithMessage("a rejection reason is required")
	}
	var out *models.BarrelRepair
	err := s.run(ctx, "repair.reject", func(tx repositories.Tx, fx *effects) error {
		r, b, err := lockRepair(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.Now()
		updated, err := transitionRepair(ctx, tx, r, models.RepairStatusRejected, models.RepairPatch{
			RejectedBy:      &actor.ID,
			RejectedAt:      &now,
			RejectionReason: &reason,
		}, now)
		if err != nil {
			return err
		}

		d, err := tx.Damages().Get(ctx, r.DamageID)
		if err != nil {
			return err
		}
		d.Status = models.DamageStatusAssigned
		d.UpdatedAt = now
		if err := tx.Damages().Update(ctx, d); err != nil {
			return err
		}
		if err := s.advanceLifecycle(ctx, tx, fx, b, models.BarrelStatusDamaged, models.ConditionDamaged, actor, now); err != nil {
			return err
		}
		if _, err := s.notify(ctx, tx, fx, models.SendNotificationRequest{
			Type:     models.NotifyRepairRejected,
			Target:   models.Target{RecipientID: r.AssignedTo},
			Title:    "Repair on barrel " + b.Code + " rejected",
			Message:  reason,
			Priority: models.SeverityHigh,
			Data:     map[string]any{"barrel_id": b.ID, "damage_id": d.ID, "repair_id": r.ID},
		}, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditReject,
			EntityType: models.EntityRepair,
			EntityID:   r.ID,
			Details:    map[string]any{"reason": reason, "damage_id": d.ID},
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityRepair, models.AuditReject)
		out = updated
		return nil
	})
	return out, err
}

// Get returns a workflow with its work log.
func (s *RepairService) Get(ctx context.Context, id string) (*models.BarrelRepair, error) {
	var out *models.BarrelRepair
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Repairs().Get(ctx, id)
		return err
	})
	return out, err
}

// ListByDamage returns every workflow of a report, oldest first.
func (s *RepairService) ListByDamage(ctx context.Context, damageID string) ([]*models.BarrelRepair, error) {
	var out []*models.BarrelRepair
	err := s.view(ctx, func(tx repositories.Tx) error {
		if _, err := tx.Damages().Get(ctx, damageID); err != nil {
			return err
		}
		var err error
		out, err = tx.Repairs().ListByDamage(ctx, damageID)
		return err
	})
	return out, err
}

func (s *RepairService) ListByAssignee(ctx context.Context, assignee string) ([]*models.BarrelRepair, error) {
	var out []*models.BarrelRepair
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Repairs().ListByAssignee(ctx, assignee)
		return err
	})
	return out, err
}
