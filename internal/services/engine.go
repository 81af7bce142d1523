package services

import (
	"context"
	"log/slog"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/cache"
	"barrel-backend/internal/lifecycle"
	"barrel-backend/internal/metrics"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
	"barrel-backend/internal/timeutil"

	"github.com/google/uuid"
)

// Engine carries what every component shares: the store, the clock, id
// generation and the logger. Cascades run as unexported helpers against one
// repositories.Tx, so a top-level operation commits or rolls back as a unit.
type Engine struct {
	Store  repositories.Store
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

func NewEngine(store repositories.Store, logger *slog.Logger) *Engine {
	return &Engine{
		Store:  store,
		Now:    timeutil.Now,
		NewID:  uuid.NewString,
		Logger: logger,
	}
}

// effects collects work that must only happen after a successful commit.
type effects struct {
	barrelCodes []string
	targets     []models.Target
	transitions [][2]string
}

func (fx *effects) invalidateBarrel(code string) {
	fx.barrelCodes = append(fx.barrelCodes, code)
}

func (fx *effects) transition(entity string, action models.AuditAction) {
	fx.transitions = append(fx.transitions, [2]string{entity, string(action)})
}

func (e *Engine) apply(ctx context.Context, fx *effects) {
	for _, code := range fx.barrelCodes {
		cache.InvalidateBarrel(ctx, code)
	}
	for _, t := range fx.targets {
		cache.InvalidateUnread(ctx, t)
	}
	for _, tr := range fx.transitions {
		metrics.Transition(tr[0], tr[1])
	}
}

// run executes fn in one transaction and applies its effects after commit.
// Typed rejections are counted and logged at warn; anything else at error.
func (e *Engine) run(ctx context.Context, op string, fn func(tx repositories.Tx, fx *effects) error) error {
	var fx *effects
	err := e.Store.WithTx(ctx, func(tx repositories.Tx) error {
		fx = &effects{}
		return fn(tx, fx)
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			metrics.Rejection(ae.Code)
			e.Logger.Warn("operation rejected", "op", op, "code", ae.Code, "reason", ae.Message)
		} else {
			e.Logger.Error("operation failed", "op", op, "err", err)
		}
		return err
	}
	e.apply(ctx, fx)
	return nil
}

func (e *Engine) view(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return e.Store.View(ctx, fn)
}

func requireActor(actor models.Actor) error {
	if actor.ID == "" {
		return apperr.ErrInvalidField.WithMessage("actor id is required")
	}
	return nil
}

// lockBarrel loads a barrel under its per-container lock.
func lockBarrel(ctx context.Context, tx repositories.Tx, id string) (*models.Barrel, error) {
	return tx.Barrels().GetForUpdate(ctx, id)
}

// saveBarrel re-validates every per-record invariant before writing.
func (e *Engine) saveBarrel(ctx context.Context, tx repositories.Tx, fx *effects, b *models.Barrel, actor models.Actor, now time.Time) error {
	b.LastUpdatedBy = actor.ID
	b.UpdatedAt = now
	if err := models.ValidateBarrel(b, now); err != nil {
		return err
	}
	if err := tx.Barrels().Update(ctx, b); err != nil {
		return err
	}
	fx.invalidateBarrel(b.Code)
	return nil
}

// advanceLifecycle is the only writer of a barrel's status and condition.
// It is reached from the damage and repair cascades and from scrap/disposal.
func (e *Engine) advanceLifecycle(ctx context.Context, tx repositories.Tx, fx *effects, b *models.Barrel, status models.BarrelStatus, condition models.BarrelCondition, actor models.Actor, now time.Time) error {
	if err := lifecycle.CanAdvanceBarrel(b.Status, status, b.Condition, condition).Error(); err != nil {
		return err
	}
	fromStatus, fromCondition := b.Status, b.Condition
	b.Status = status
	b.Condition = condition
	if err := e.saveBarrel(ctx, tx, fx, b, actor, now); err != nil {
		return err
	}
	e.Logger.Info("barrel lifecycle advanced",
		"component", "registry", "barrel_id", b.ID,
		"from_status", fromStatus, "to_status", status,
		"from_condition", fromCondition, "to_condition", condition)
	return nil
}

// appendMovement writes one ledger entry inside tx.
func (e *Engine) appendMovement(ctx context.Context, tx repositories.Tx, m *models.BarrelMovement, actor models.Actor, now time.Time) error {
	if err := models.ValidateMovement(m); err != nil {
		return err
	}
	m.ID = e.NewID()
	m.CreatedBy = actor.ID
	m.CreatedAt = now
	return tx.Movements().Append(ctx, m)
}

// relocate moves b to `to`, appending a move entry when the location changes.
func (e *Engine) relocate(ctx context.Context, tx repositories.Tx, b *models.Barrel, to models.Location, typ models.MovementType, note string, actor models.Actor, now time.Time) error {
	if b.CurrentLocation == to {
		return nil
	}
	m := &models.BarrelMovement{
		BarrelID:     b.ID,
		Type:         typ,
		FromLocation: b.CurrentLocation,
		ToLocation:   to,
		Note:         note,
	}
	b.CurrentLocation = to
	return e.appendMovement(ctx, tx, m, actor, now)
}

// notify creates a notification inside tx and schedules counter invalidation.
func (e *Engine) notify(ctx context.Context, tx repositories.Tx, fx *effects, req models.SendNotificationRequest, now time.Time) (*models.Notification, error) {
	req.Target = models.NormalizeTarget(req.Target)
	if err := models.ValidateTarget(req.Target); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = models.NotifyGeneral
	}
	if req.Priority == "" {
		req.Priority = models.SeverityLow
	}
	if !req.Priority.Valid() {
		return nil, apperr.ErrInvalidField.WithMessagef("unknown priority %q", req.Priority)
	}
	if req.Title == "" {
		return nil, apperr.ErrInvalidField.WithMessage("title is required")
	}
	n := &models.Notification{
		ID:            e.NewID(),
		Type:          req.Type,
		RecipientID:   req.Target.RecipientID,
		RecipientRole: req.Target.RecipientRole,
		Title:         req.Title,
		Message:       req.Message,
		Priority:      req.Priority,
		Data:          req.Data,
		CreatedAt:     now,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return nil, err
	}
	fx.targets = append(fx.targets, req.Target)
	return n, nil
}
