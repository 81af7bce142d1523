package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBarrel(t *testing.T, s *Store, id, code string) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx repositories.Tx) error {
		return tx.Barrels().Create(context.Background(), &models.Barrel{
			ID: id, Code: code, Capacity: 200,
			Status: models.BarrelStatusInStorage, Condition: models.ConditionGood,
			CurrentLocation: models.LocationYard, LastUpdatedBy: "u1",
		})
	})
	require.NoError(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedBarrel(t, s, "b1", "C1")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repositories.Tx) error {
		b, err := tx.Barrels().GetForUpdate(ctx, "b1")
		require.NoError(t, err)
		b.CurrentVolume = 150
		require.NoError(t, tx.Barrels().Update(ctx, b))
		require.NoError(t, tx.Movements().Append(ctx, &models.BarrelMovement{ID: "m1", BarrelID: "b1", Type: models.MovementIn, VolumeDelta: 150}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx repositories.Tx) error {
		b, err := tx.Barrels().Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 0.0, b.CurrentVolume)
		moves, err := tx.Movements().ListByBarrel(ctx, "b1", 0, 0)
		require.NoError(t, err)
		assert.Empty(t, moves)
		return nil
	}))
}

func TestBarrels_DuplicateCode(t *testing.T) {
	s := New()
	seedBarrel(t, s, "b1", "C1")
	err := s.WithTx(context.Background(), func(tx repositories.Tx) error {
		return tx.Barrels().Create(context.Background(), &models.Barrel{ID: "b2", Code: "C1"})
	})
	assert.True(t, errors.Is(err, apperr.ErrDuplicateCode))
}

func TestBarrels_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedBarrel(t, s, "b1", "C1")
	require.NoError(t, s.View(ctx, func(tx repositories.Tx) error {
		b, err := tx.Barrels().Get(ctx, "b1")
		require.NoError(t, err)
		b.Capacity = 1
		again, err := tx.Barrels().Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 200.0, again.Capacity)
		return nil
	}))
}

func TestDamages_SingleActivePerBarrel(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedBarrel(t, s, "b1", "C1")
	create := func(id string) error {
		return s.WithTx(ctx, func(tx repositories.Tx) error {
			return tx.Damages().Create(ctx, &models.BarrelDamage{ID: id, BarrelID: "b1", Status: models.DamageStatusOpen})
		})
	}
	require.NoError(t, create("d1"))
	assert.True(t, errors.Is(create("d2"), apperr.ErrActiveReportExists))

	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		d, err := tx.Damages().Get(ctx, "d1")
		require.NoError(t, err)
		d.Status = models.DamageStatusResolved
		return tx.Damages().Update(ctx, d)
	}))
	require.NoError(t, create("d2"))
}

func TestRepairs_TransitionStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		return tx.Repairs().Create(ctx, &models.BarrelRepair{ID: "r1", DamageID: "d1", Status: models.RepairStatusAssigned})
	}))

	err := s.WithTx(ctx, func(tx repositories.Tx) error {
		r, err := tx.Repairs().TransitionStatus(ctx, "r1", models.RepairStatusAssigned, models.RepairStatusInProgress, models.RepairPatch{StartedAt: &now}, now)
		require.NoError(t, err)
		assert.Equal(t, models.RepairStatusInProgress, r.Status)
		assert.Equal(t, now, *r.StartedAt)
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx repositories.Tx) error {
		_, err := tx.Repairs().TransitionStatus(ctx, "r1", models.RepairStatusAssigned, models.RepairStatusInProgress, models.RepairPatch{}, now)
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrStaleState))
}

func TestRepairs_WorkLogSequence(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		require.NoError(t, tx.Repairs().Create(ctx, &models.BarrelRepair{ID: "r1", Status: models.RepairStatusInProgress}))
		for _, step := range []string{"drain", "scrape", "rinse"} {
			require.NoError(t, tx.Repairs().AppendWorkLog(ctx, "r1", &models.WorkLogEntry{Step: step, Actor: "w1"}))
		}
		return nil
	}))
	require.NoError(t, s.View(ctx, func(tx repositories.Tx) error {
		r, err := tx.Repairs().Get(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, r.WorkLog, 3)
		assert.Equal(t, 1, r.WorkLog[0].Seq)
		assert.Equal(t, "rinse", r.WorkLog[2].Step)
		assert.Equal(t, 3, r.WorkLog[2].Seq)
		return nil
	}))
}

func TestNotifications_RecipientMatching(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		require.NoError(t, tx.Notifications().Create(ctx, &models.Notification{ID: "n1", RecipientRole: models.RoleSupervisor}))
		require.NoError(t, tx.Notifications().Create(ctx, &models.Notification{ID: "n2", RecipientID: "w1"}))
		return nil
	}))
	require.NoError(t, s.View(ctx, func(tx repositories.Tx) error {
		n, err := tx.Notifications().CountUnread(ctx, "s1", models.RoleSupervisor)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		list, err := tx.Notifications().ListForRecipient(ctx, "w1", models.RoleWorker, true, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "n2", list[0].ID)
		return nil
	}))
}

func TestAudit_InsertRequiresIncreasingSeq(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		return tx.Audit().Insert(ctx, &models.AuditLog{ID: "a1", Seq: 1})
	}))
	err := s.WithTx(ctx, func(tx repositories.Tx) error {
		return tx.Audit().Insert(ctx, &models.AuditLog{ID: "a2", Seq: 1})
	})
	assert.True(t, errors.Is(err, apperr.ErrStaleState))

	require.NoError(t, s.View(ctx, func(tx repositories.Tx) error {
		tail, err := tx.Audit().Tail(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), tail.Seq)
		return nil
	}))
}
