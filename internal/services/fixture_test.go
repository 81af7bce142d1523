package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"barrel-backend/internal/logger"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
	"barrel-backend/internal/repositories/memory"

	"github.com/stretchr/testify/require"
)

var (
	lab        = models.Actor{ID: "u-lab", Role: models.RoleLab}
	worker     = models.Actor{ID: "u-worker", Role: models.RoleWorker}
	supervisor = models.Actor{ID: "u-super", Role: models.RoleSupervisor}
	admin      = models.Actor{ID: "u-admin", Role: models.RoleAdmin}
)

// stepClock advances one second per reading so entries order deterministically.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store         repositories.Store
	engine        *Engine
	registry      *RegistryService
	damages       *DamageService
	repairs       *RepairService
	ledger        *LedgerService
	audit         *AuditService
	notifications *NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New())
}

func newFixtureWithStore(t *testing.T, store repositories.Store) *fixture {
	t.Helper()
	clock := &stepClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	engine := NewEngine(store, logger.Discard())
	engine.Now = clock.Now

	codes, err := models.NewCodeValidator("")
	require.NoError(t, err)

	return &fixture{
		store:         store,
		engine:        engine,
		registry:      NewRegistryService(engine, codes, models.DefaultMaxCapacity),
		damages:       NewDamageService(engine),
		repairs:       NewRepairService(engine),
		ledger:        NewLedgerService(engine),
		audit:         NewAuditService(engine),
		notifications: NewNotificationService(engine),
	}
}

func (f *fixture) register(t *testing.T, code string, capacity float64) *models.Barrel {
	t.Helper()
	b, err := f.registry.Register(context.Background(), models.RegisterBarrelRequest{Code: code, Capacity: capacity}, lab)
	require.NoError(t, err)
	return b
}

func lumbed(p float64) models.ReportDamageRequest {
	return models.ReportDamageRequest{
		DamageType:  models.DamageTypeLumbed,
		Severity:    models.SeverityHigh,
		LumbPercent: &p,
		Remarks:     "lumps near the rim",
	}
}

func (f *fixture) report(t *testing.T, barrelID string) *models.BarrelDamage {
	t.Helper()
	req := lumbed(30)
	req.BarrelID = barrelID
	d, err := f.damages.ReportDamage(context.Background(), req, lab)
	require.NoError(t, err)
	return d
}

// completedRepair drives a fresh barrel to a completed lumb-removal repair.
func (f *fixture) completedRepair(t *testing.T, code string) (*models.Barrel, *models.BarrelDamage, *models.BarrelRepair) {
	t.Helper()
	ctx := context.Background()
	b := f.register(t, code, 200)
	d := f.report(t, b.ID)
	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeLumbRemoval, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)
	_, err = f.repairs.StartWork(ctx, a.Repair.ID, worker)
	require.NoError(t, err)
	_, err = f.repairs.LogStep(ctx, a.Repair.ID, models.LogStepRequest{Step: "scrape"}, worker)
	require.NoError(t, err)
	r, err := f.repairs.Complete(ctx, a.Repair.ID, worker)
	require.NoError(t, err)
	return b, a.Damage, r
}

func (f *fixture) movements(t *testing.T, barrelID string) []*models.BarrelMovement {
	t.Helper()
	ms, err := f.ledger.ListByBarrel(context.Background(), barrelID, 500, 0)
	require.NoError(t, err)
	return ms
}

var errInjected = errors.New("injected failure")

// failingStore wraps a store so that notification writes fail, which aborts
// any cascade that notifies.
type failingStore struct {
	repositories.Store
}

func (s failingStore) WithTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx repositories.Tx) error {
		return fn(failingTx{tx})
	})
}

type failingTx struct {
	repositories.Tx
}

func (t failingTx) Notifications() repositories.NotificationRepo {
	return failingNotifications{t.Tx.Notifications()}
}

type failingNotifications struct {
	repositories.NotificationRepo
}

func (failingNotifications) Create(context.Context, *models.Notification) error {
	return errInjected
}

// tamperStore rewrites the details of one audit entry on read.
type tamperStore struct {
	repositories.Store
	seq int64
}

func (s tamperStore) View(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.Store.View(ctx, func(tx repositories.Tx) error {
		return fn(tamperTx{Tx: tx, seq: s.seq})
	})
}

type tamperTx struct {
	repositories.Tx
	seq int64
}

func (t tamperTx) Audit() repositories.AuditRepo {
	return tamperAudit{AuditRepo: t.Tx.Audit(), seq: t.seq}
}

type tamperAudit struct {
	repositories.AuditRepo
	seq int64
}

func (a tamperAudit) Range(ctx context.Context, afterSeq int64, limit int) ([]*models.AuditLog, error) {
	page, err := a.AuditRepo.Range(ctx, afterSeq, limit)
	for _, entry := range page {
		if entry.Seq == a.seq {
			entry.Details = map[string]any{"capacity": float64(9999)}
		}
	}
	return page, err
}
