// Package memory provides an in-memory implementation of the repositories
// store used for tests and ephemeral environments. A transaction works on a
// clone of the state taken under the store lock and swaps it in on success,
// so a failed cascade leaves nothing behind.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
)

// Compile-time contract assertion.
var _ repositories.Store = (*Store)(nil)

type state struct {
	seq           int64
	barrels       map[string]models.Barrel
	codes         map[string]string
	damages       map[string]models.BarrelDamage
	repairs       map[string]models.BarrelRepair
	workLogs      map[string][]models.WorkLogEntry
	movements     []models.BarrelMovement
	audit         []models.AuditLog
	notifications map[string]models.Notification
	// order records insertion sequence per id for stable listings.
	order map[string]int64
}

func newState() state {
	return state{
		barrels:       map[string]models.Barrel{},
		codes:         map[string]string{},
		damages:       map[string]models.BarrelDamage{},
		repairs:       map[string]models.BarrelRepair{},
		workLogs:      map[string][]models.WorkLogEntry{},
		notifications: map[string]models.Notification{},
		order:         map[string]int64{},
	}
}

func (s state) clone() state {
	c := state{
		seq:           s.seq,
		barrels:       make(map[string]models.Barrel, len(s.barrels)),
		codes:         maps.Clone(s.codes),
		damages:       make(map[string]models.BarrelDamage, len(s.damages)),
		repairs:       make(map[string]models.BarrelRepair, len(s.repairs)),
		workLogs:      make(map[string][]models.WorkLogEntry, len(s.workLogs)),
		movements:     slices.Clone(s.movements),
		audit:         slices.Clone(s.audit),
		notifications: make(map[string]models.Notification, len(s.notifications)),
		order:         maps.Clone(s.order),
	}
	for k, v := range s.barrels {
		c.barrels[k] = cloneBarrel(v)
	}
	for k, v := range s.damages {
		c.damages[k] = cloneDamage(v)
	}
	for k, v := range s.repairs {
		c.repairs[k] = cloneRepair(v)
	}
	for k, v := range s.workLogs {
		c.workLogs[k] = slices.Clone(v)
	}
	for k, v := range s.notifications {
		c.notifications[k] = cloneNotification(v)
	}
	return c
}

func (s *state) track(id string) {
	s.seq++
	s.order[id] = s.seq
}

// Store is an in-memory repositories.Store. A single lock serializes writers,
// which gives per-container and per-workflow serialization for free.
type Store struct {
	mu    sync.RWMutex
	state state
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// WithTx runs fn against a private clone and commits it if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View runs fn against a snapshot; anything fn writes is discarded.
func (s *Store) View(ctx context.Context, fn func(tx repositories.Tx) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&transaction{state: snapshot})
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

type transaction struct {
	state state
}

func (tx *transaction) Barrels() repositories.BarrelRepo             { return barrelRepo{tx} }
func (tx *transaction) Damages() repositories.DamageRepo             { return damageRepo{tx} }
func (tx *transaction) Repairs() repositories.RepairRepo             { return repairRepo{tx} }
func (tx *transaction) Movements() repositories.MovementRepo         { return movementRepo{tx} }
func (tx *transaction) Audit() repositories.AuditRepo                { return auditRepo{tx} }
func (tx *transaction) Notifications() repositories.NotificationRepo { return notificationRepo{tx} }

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneBarrel(b models.Barrel) models.Barrel {
	b.LumbPercent = cloneFloat(b.LumbPercent)
	b.BaseWeight = cloneFloat(b.BaseWeight)
	b.EmptyWeight = cloneFloat(b.EmptyWeight)
	b.GrossWeight = cloneFloat(b.GrossWeight)
	b.ManufactureDate = cloneTime(b.ManufactureDate)
	b.ExpiryDate = cloneTime(b.ExpiryDate)
	return b
}

func cloneDamage(d models.BarrelDamage) models.BarrelDamage {
	d.LumbPercent = cloneFloat(d.LumbPercent)
	d.AssignedAt = cloneTime(d.AssignedAt)
	d.ResolvedAt = cloneTime(d.ResolvedAt)
	return d
}

func cloneRepair(r models.BarrelRepair) models.BarrelRepair {
	r.WorkLog = slices.Clone(r.WorkLog)
	r.StartedAt = cloneTime(r.StartedAt)
	r.CompletedAt = cloneTime(r.CompletedAt)
	r.ApprovedAt = cloneTime(r.ApprovedAt)
	r.RejectedAt = cloneTime(r.RejectedAt)
	return r
}

func cloneNotification(n models.Notification) models.Notification {
	n.Data = maps.Clone(n.Data)
	n.ReadAt = cloneTime(n.ReadAt)
	return n
}

func cloneAudit(a models.AuditLog) models.AuditLog {
	a.Details = maps.Clone(a.Details)
	return a
}
