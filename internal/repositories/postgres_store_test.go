package repositories_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/database"
	"barrel-backend/internal/logger"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
	"barrel-backend/internal/services"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against a disposable PostgreSQL database named by
// BARREL_TEST_DATABASE_DSN. Every table is truncated before each test.

var (
	lab        = models.Actor{ID: "u-lab", Role: models.RoleLab}
	worker     = models.Actor{ID: "u-worker", Role: models.RoleWorker}
	supervisor = models.Actor{ID: "u-super", Role: models.RoleSupervisor}
)

type pgFixture struct {
	store    *repositories.PostgresStore
	registry *services.RegistryService
	damages  *services.DamageService
	repairs  *services.RepairService
	audit    *services.AuditService
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	dsn := os.Getenv("BARREL_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("BARREL_TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()
	log := logger.Discard()

	require.NoError(t, database.NewMigrator(dsn, log).RunMigrations(ctx))
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE barrel_repair_steps, barrel_repairs, barrel_damages,
		barrel_movements, barrels, audit_logs, notifications`)
	require.NoError(t, err)

	store := repositories.NewPostgresStore(pool)
	engine := services.NewEngine(store, log)
	codes, err := models.NewCodeValidator("")
	require.NoError(t, err)
	return &pgFixture{
		store:    store,
		registry: services.NewRegistryService(engine, codes, models.DefaultMaxCapacity),
		damages:  services.NewDamageService(engine),
		repairs:  services.NewRepairService(engine),
		audit:    services.NewAuditService(engine),
	}
}

func (f *pgFixture) register(t *testing.T, code string) *models.Barrel {
	t.Helper()
	b, err := f.registry.Register(context.Background(), models.RegisterBarrelRequest{Code: code, Capacity: 200}, lab)
	require.NoError(t, err)
	return b
}

func lumbed(barrelID string) models.ReportDamageRequest {
	p := 30.0
	return models.ReportDamageRequest{
		BarrelID:    barrelID,
		DamageType:  models.DamageTypeLumbed,
		Severity:    models.SeverityHigh,
		LumbPercent: &p,
	}
}

// race runs fn n times concurrently and returns each call's error.
func race(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func winners(t *testing.T, errs []error, loser *apperr.Error) int {
	t.Helper()
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
			continue
		}
		assert.ErrorIs(t, err, loser)
	}
	return n
}

func TestPostgres_AdjustVolumeSerializesPerBarrel(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	b := f.register(t, "PG-1")

	deltas := []float64{150, 80}
	errs := race(len(deltas), func(i int) error {
		_, err := f.registry.AdjustVolume(ctx, b.ID, models.AdjustVolumeRequest{Delta: deltas[i]}, lab)
		return err
	})
	assert.Equal(t, 1, winners(t, errs, apperr.ErrOutOfBounds))

	got, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.CurrentVolume, 200.0)
}

func TestPostgres_ConcurrentReportDamageHasOneWinner(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	b := f.register(t, "PG-1")

	errs := race(6, func(int) error {
		_, err := f.damages.ReportDamage(ctx, lumbed(b.ID), lab)
		return err
	})
	assert.Equal(t, 1, winners(t, errs, apperr.ErrActiveReportExists))

	reports, err := f.damages.ListByBarrel(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestPostgres_ActiveDamageIndexMapsToConflict(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	b := f.register(t, "PG-1")
	_, err := f.damages.ReportDamage(ctx, lumbed(b.ID), lab)
	require.NoError(t, err)

	// bypass the service guard so only the partial unique index can refuse
	err = f.store.WithTx(ctx, func(tx repositories.Tx) error {
		now := time.Now().UTC()
		return tx.Damages().Create(ctx, &models.BarrelDamage{
			ID:         uuid.NewString(),
			BarrelID:   b.ID,
			ReportedBy: lab.ID,
			Source:     models.DamageSourceLab,
			DamageType: models.DamageTypePhysical,
			Severity:   models.SeverityLow,
			Status:     models.DamageStatusOpen,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	require.ErrorIs(t, err, apperr.ErrActiveReportExists)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestPostgres_TransitionStatusIsCompareAndSet(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	b := f.register(t, "PG-1")
	d, err := f.damages.ReportDamage(ctx, lumbed(b.ID), lab)
	require.NoError(t, err)
	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeLumbRemoval, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)

	// both writers read "assigned" and race to different targets
	targets := []models.RepairStatus{models.RepairStatusInProgress, models.RepairStatusCompleted}
	errs := race(len(targets), func(i int) error {
		return f.store.WithTx(ctx, func(tx repositories.Tx) error {
			now := time.Now().UTC()
			_, err := tx.Repairs().TransitionStatus(ctx, a.Repair.ID, models.RepairStatusAssigned, targets[i], models.RepairPatch{}, now)
			return err
		})
	})
	assert.Equal(t, 1, winners(t, errs, apperr.ErrStaleState))

	err = f.store.WithTx(ctx, func(tx repositories.Tx) error {
		_, err := tx.Repairs().TransitionStatus(ctx, uuid.NewString(), models.RepairStatusAssigned, models.RepairStatusInProgress, models.RepairPatch{}, time.Now())
		return err
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPostgres_StartAndCompleteRaceHasOneWinner(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	b := f.register(t, "PG-1")
	d, err := f.damages.ReportDamage(ctx, lumbed(b.ID), lab)
	require.NoError(t, err)
	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeLumbRemoval, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)
	_, err = f.repairs.StartWork(ctx, a.Repair.ID, worker)
	require.NoError(t, err)

	errs := race(6, func(i int) error {
		var err error
		if i%2 == 0 {
			_, err = f.repairs.StartWork(ctx, a.Repair.ID, worker)
		} else {
			_, err = f.repairs.Complete(ctx, a.Repair.ID, worker)
		}
		return err
	})
	won := 0
	for i, err := range errs {
		if err == nil {
			won++
			assert.Equal(t, 1, i%2, "only Complete can win from in-progress")
			continue
		}
		assert.True(t, apperr.KindOf(err) == apperr.KindState || apperr.KindOf(err) == apperr.KindConflict, "got %v", err)
	}
	assert.Equal(t, 1, won)

	r, err := f.repairs.Get(ctx, a.Repair.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusCompleted, r.Status)
}

func TestPostgres_AuditChainStaysLinearUnderLoad(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	const n = 8
	errs := race(n, func(i int) error {
		_, err := f.registry.Register(ctx, models.RegisterBarrelRequest{Code: "PG-" + string(rune('A'+i)), Capacity: 100}, lab)
		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	res, err := f.audit.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), res.Entries)
	assert.Equal(t, int64(n), res.LastSeq)
}
