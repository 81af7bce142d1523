// Package repositories defines the persistence ports of the barrel engine and
// their PostgreSQL adapters. Every mutating service call runs inside one Tx, so
// a cascade touching several collections commits or rolls back as a unit.
package repositories

import (
	"context"
	"time"

	"barrel-backend/internal/models"
)

// BarrelRepo persists barrels. Barrels are never deleted.
type BarrelRepo interface {
	Create(ctx context.Context, b *models.Barrel) error
	Get(ctx context.Context, id string) (*models.Barrel, error)
	// GetForUpdate reads a barrel and holds its per-container lock until the
	// enclosing transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Barrel, error)
	GetByCode(ctx context.Context, code string) (*models.Barrel, error)
	Update(ctx context.Context, b *models.Barrel) error
	List(ctx context.Context, filter models.BarrelFilter) ([]*models.Barrel, error)
}

// DamageRepo persists damage reports.
type DamageRepo interface {
	Create(ctx context.Context, d *models.BarrelDamage) error
	Get(ctx context.Context, id string) (*models.BarrelDamage, error)
	// GetActiveByBarrel returns nil, nil when the barrel has no active report.
	GetActiveByBarrel(ctx context.Context, barrelID string) (*models.BarrelDamage, error)
	Update(ctx context.Context, d *models.BarrelDamage) error
	ListByBarrel(ctx context.Context, barrelID string) ([]*models.BarrelDamage, error)
	ListActive(ctx context.Context) ([]*models.BarrelDamage, error)
}

// RepairRepo persists repair workflows and their append-only work logs.
type RepairRepo interface {
	Create(ctx context.Context, r *models.BarrelRepair) error
	Get(ctx context.Context, id string) (*models.BarrelRepair, error)
	// LatestByDamage returns nil, nil when the report was never assigned.
	LatestByDamage(ctx context.Context, damageID string) (*models.BarrelRepair, error)
	ListByDamage(ctx context.Context, damageID string) ([]*models.BarrelRepair, error)
	ListByAssignee(ctx context.Context, assignee string) ([]*models.BarrelRepair, error)
	// TransitionStatus moves the workflow from `from` to `to` only if its stored
	// status still equals `from`; otherwise it returns apperr.ErrStaleState.
	TransitionStatus(ctx context.Context, id string, from, to models.RepairStatus, patch models.RepairPatch, at time.Time) (*models.BarrelRepair, error)
	AppendWorkLog(ctx context.Context, repairID string, entry *models.WorkLogEntry) error
}

// MovementRepo is the append-only movement ledger. It has no update or delete.
type MovementRepo interface {
	Append(ctx context.Context, m *models.BarrelMovement) error
	ListByBarrel(ctx context.Context, barrelID string, limit, offset int) ([]*models.BarrelMovement, error)
}

// AuditRepo is the append-only, hash-chained audit log.
type AuditRepo interface {
	// LockChain serializes chain appends until the enclosing transaction ends.
	LockChain(ctx context.Context) error
	// Tail returns the last entry, or nil on an empty log.
	Tail(ctx context.Context) (*models.AuditLog, error)
	Insert(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
	// Range returns up to limit entries with Seq > afterSeq in Seq order.
	Range(ctx context.Context, afterSeq int64, limit int) ([]*models.AuditLog, error)
}

// NotificationRepo persists notifications. Read state is the only mutable part.
type NotificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id, readBy string, at time.Time) error
	ListForRecipient(ctx context.Context, userID, role string, unreadOnly bool, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID, role string) (int, error)
}

// Tx exposes every collection bound to one transaction.
type Tx interface {
	Barrels() BarrelRepo
	Damages() DamageRepo
	Repairs() RepairRepo
	Movements() MovementRepo
	Audit() AuditRepo
	Notifications() NotificationRepo
}

// Store opens transactions over the six collections.
type Store interface {
	// WithTx runs fn in a read-write transaction, committing only if fn
	// returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a read-only view.
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
