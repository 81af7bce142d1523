package services

import (
	"context"
	"sync"
	"testing"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportDamageAllowsOneActiveReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)

	d := f.report(t, b.ID)
	assert.Equal(t, models.DamageStatusOpen, d.Status)
	assert.Equal(t, models.DamageSourceField, d.Source)
	assert.Equal(t, lab.ID, d.ReportedBy)

	got, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConditionDamaged, got.Condition)
	assert.Equal(t, models.BarrelStatusDamaged, got.Status)
	assert.Equal(t, models.DamageTypeLumbed, got.DamageType)
	require.NotNil(t, got.LumbPercent)
	assert.Equal(t, 30.0, *got.LumbPercent)

	again := lumbed(50)
	again.BarrelID = b.ID
	_, err = f.damages.ReportDamage(ctx, again, worker)
	require.ErrorIs(t, err, apperr.ErrActiveReportExists)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	supers, err := f.notifications.ListForActor(ctx, supervisor, true, 0)
	require.NoError(t, err)
	require.Len(t, supers, 1)
	assert.Equal(t, models.NotifyDamageReported, supers[0].Type)
	assert.Equal(t, models.SeverityHigh, supers[0].Priority)
}

func TestReportDamageValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)
	pct := 20.0

	tests := []struct {
		name string
		req  models.ReportDamageRequest
		want *apperr.Error
	}{
		{"lumbed without percent", models.ReportDamageRequest{BarrelID: b.ID, DamageType: models.DamageTypeLumbed, Severity: models.SeverityLow}, apperr.ErrMissingLumbPercent},
		{"percent on physical damage", models.ReportDamageRequest{BarrelID: b.ID, DamageType: models.DamageTypePhysical, Severity: models.SeverityLow, LumbPercent: &pct}, apperr.ErrInvalidField},
		{"unknown severity", models.ReportDamageRequest{BarrelID: b.ID, DamageType: models.DamageTypeOther, Severity: "extreme"}, apperr.ErrInvalidField},
		{"unknown source", models.ReportDamageRequest{BarrelID: b.ID, DamageType: models.DamageTypeOther, Severity: models.SeverityLow, Source: "rumour"}, apperr.ErrInvalidField},
		{"unknown barrel", models.ReportDamageRequest{BarrelID: "missing", DamageType: models.DamageTypeOther, Severity: models.SeverityLow}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.damages.ReportDamage(ctx, tt.req, lab)
			require.ErrorIs(t, err, tt.want)
		})
	}

	got, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConditionGood, got.Condition)
}

func TestAssignMovesBarrelIntoRepair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)
	d := f.report(t, b.ID)

	_, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeCleaning}, supervisor)
	require.ErrorIs(t, err, apperr.ErrInvalidField)

	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeLumbRemoval, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, models.DamageStatusAssigned, a.Damage.Status)
	assert.Equal(t, models.RepairTypeLumbRemoval, a.Damage.AssignedTo)
	assert.Equal(t, supervisor.ID, a.Damage.AssignedBy)
	require.NotNil(t, a.Damage.AssignedAt)
	assert.Equal(t, models.RepairStatusAssigned, a.Repair.Status)
	assert.Equal(t, worker.ID, a.Repair.AssignedTo)

	got, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BarrelStatusRepair, got.Status)
	assert.Equal(t, models.ConditionLumbRemoval, got.Condition)
	assert.Equal(t, models.LocationLumbBay, got.CurrentLocation)

	_, err = f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeCleaning, AssignedTo: worker.ID}, supervisor)
	require.ErrorIs(t, err, apperr.ErrNotOpen)

	mine, err := f.notifications.ListForActor(ctx, worker, true, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.NotifyRepairAssigned, mine[0].Type)
}

func TestRepairHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)
	d := f.report(t, b.ID)

	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeLumbRemoval, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)
	id := a.Repair.ID

	r, err := f.repairs.StartWork(ctx, id, worker)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusInProgress, r.Status)
	require.NotNil(t, r.StartedAt)

	for _, step := range []string{"drain", "scrape", "rinse"} {
		_, err := f.repairs.LogStep(ctx, id, models.LogStepRequest{Step: step}, worker)
		require.NoError(t, err)
	}

	r, err = f.repairs.Complete(ctx, id, worker)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusCompleted, r.Status)
	require.NotNil(t, r.CompletedAt)

	r, err = f.repairs.Approve(ctx, id, supervisor)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusApproved, r.Status)
	assert.Equal(t, supervisor.ID, r.ApprovedBy)
	require.Len(t, r.WorkLog, 3)
	for i, entry := range r.WorkLog {
		assert.Equal(t, i+1, entry.Seq)
		assert.Equal(t, worker.ID, entry.Actor)
	}

	barrel, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BarrelStatusInStorage, barrel.Status)
	assert.Equal(t, models.ConditionGood, barrel.Condition)
	assert.Equal(t, models.LocationYard, barrel.CurrentLocation)
	assert.Equal(t, models.DamageTypeNone, barrel.DamageType)
	assert.Nil(t, barrel.LumbPercent)

	report, err := f.damages.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DamageStatusResolved, report.Status)
	require.NotNil(t, report.ResolvedAt)

	repairMoves := 0
	for _, m := range f.movements(t, b.ID) {
		if m.Type == models.MovementRepair {
			repairMoves++
			assert.Zero(t, m.VolumeDelta)
			assert.Equal(t, models.LocationYard, m.ToLocation)
		}
	}
	assert.Equal(t, 1, repairMoves)

	reporter, err := f.notifications.ListForActor(ctx, lab, false, 0)
	require.NoError(t, err)
	approved := 0
	for _, n := range reporter {
		if n.Type == models.NotifyRepairApproved {
			approved++
			assert.Equal(t, lab.ID, n.RecipientID)
		}
	}
	assert.Equal(t, 1, approved)

	open, err := f.damages.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// a resolved report no longer blocks a new one
	f.report(t, b.ID)
}

func TestRejectReopensReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, d, first := f.completedRepair(t, "C1")

	_, err := f.repairs.Reject(ctx, first.ID, "", supervisor)
	require.ErrorIs(t, err, apperr.ErrMissingReason)

	rejected, err := f.repairs.Reject(ctx, first.ID, "insufficient cleaning", supervisor)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusRejected, rejected.Status)
	assert.Equal(t, "insufficient cleaning", rejected.RejectionReason)

	report, err := f.damages.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DamageStatusAssigned, report.Status)

	barrel, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BarrelStatusDamaged, barrel.Status)
	assert.Equal(t, models.ConditionDamaged, barrel.Condition)

	second, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypePhysicalRepair, AssignedTo: "u-worker-2"}, supervisor)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.Repair.ID)

	barrel, err = f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConditionRepair, barrel.Condition)
	assert.Equal(t, models.LocationRepairBay, barrel.CurrentLocation)

	all, err := f.repairs.ListByDamage(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, models.RepairStatusRejected, all[0].Status)
	assert.Equal(t, "insufficient cleaning", all[0].RejectionReason)
	assert.Equal(t, models.RepairStatusAssigned, all[1].Status)

	old, err := f.repairs.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusRejected, old.Status)
	require.Len(t, old.WorkLog, 1)

	_, err = f.repairs.StartWork(ctx, first.ID, worker)
	require.ErrorIs(t, err, apperr.ErrNotAssigned)

	assigned, err := f.notifications.ListForActor(ctx, worker, false, 0)
	require.NoError(t, err)
	var kinds []models.NotificationType
	for _, n := range assigned {
		kinds = append(kinds, n.Type)
	}
	assert.Contains(t, kinds, models.NotifyRepairRejected)
}

func TestRepairStateMachineRejectsSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)
	d := f.report(t, b.ID)
	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeCleaning, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)
	id := a.Repair.ID

	_, err = f.repairs.Complete(ctx, id, worker)
	require.ErrorIs(t, err, apperr.ErrNotInProgress)
	_, err = f.repairs.Approve(ctx, id, supervisor)
	require.ErrorIs(t, err, apperr.ErrNotCompleted)
	_, err = f.repairs.Reject(ctx, id, "nope", supervisor)
	require.ErrorIs(t, err, apperr.ErrNotCompleted)
	_, err = f.repairs.LogStep(ctx, id, models.LogStepRequest{Step: "early"}, worker)
	require.ErrorIs(t, err, apperr.ErrNotInProgress)
	_, err = f.damages.Resolve(ctx, d.ID, supervisor)
	require.ErrorIs(t, err, apperr.ErrRepairNotApproved)

	_, err = f.repairs.StartWork(ctx, id, worker)
	require.NoError(t, err)
	_, err = f.repairs.StartWork(ctx, id, worker)
	require.ErrorIs(t, err, apperr.ErrNotAssigned)
	assert.Equal(t, apperr.KindState, apperr.KindOf(err))

	report, err := f.damages.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DamageStatusInProgress, report.Status)
	_, err = f.repairs.LogStep(ctx, id, models.LogStepRequest{Step: "  "}, worker)
	require.ErrorIs(t, err, apperr.ErrInvalidField)

	_, err = f.repairs.Complete(ctx, id, worker)
	require.NoError(t, err)
	_, err = f.repairs.LogStep(ctx, id, models.LogStepRequest{Step: "late"}, worker)
	require.ErrorIs(t, err, apperr.ErrNotInProgress)
	_, err = f.repairs.Approve(ctx, id, supervisor)
	require.NoError(t, err)
	_, err = f.repairs.Approve(ctx, id, supervisor)
	require.ErrorIs(t, err, apperr.ErrNotCompleted)
	_, err = f.damages.Resolve(ctx, d.ID, supervisor)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)
	d := f.report(t, b.ID)
	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeInspection, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.repairs.StartWork(ctx, a.Repair.ID, worker)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrNotAssigned)
	}
	assert.Equal(t, 1, winners)
}

func TestConcurrentReportDamageHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)

	const racers = 6
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := lumbed(30)
			req.BarrelID = b.ID
			_, errs[i] = f.damages.ReportDamage(ctx, req, lab)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrActiveReportExists)
	}
	assert.Equal(t, 1, winners)

	reports, err := f.damages.ListByBarrel(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestStartAndCompleteRaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)
	d := f.report(t, b.ID)
	a, err := f.damages.Assign(ctx, d.ID, models.AssignDamageRequest{RepairType: models.RepairTypeLumbRemoval, AssignedTo: worker.ID}, supervisor)
	require.NoError(t, err)
	_, err = f.repairs.StartWork(ctx, a.Repair.ID, worker)
	require.NoError(t, err)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.repairs.StartWork(ctx, a.Repair.ID, worker)
				return
			}
			_, errs[i] = f.repairs.Complete(ctx, a.Repair.ID, worker)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
			assert.Equal(t, 1, i%2, "only Complete can win from in-progress")
		case i%2 == 0:
			assert.ErrorIs(t, err, apperr.ErrNotAssigned)
		default:
			assert.ErrorIs(t, err, apperr.ErrNotInProgress)
		}
	}
	assert.Equal(t, 1, winners)

	r, err := f.repairs.Get(ctx, a.Repair.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusCompleted, r.Status)
}

func TestCascadeRollsBackAsAUnit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f := newFixtureWithStore(t, store)
	b, d, r := f.completedRepair(t, "C1")
	movesBefore := f.movements(t, b.ID)

	broken := newFixtureWithStore(t, failingStore{Store: store})
	_, err := broken.repairs.Approve(ctx, r.ID, supervisor)
	require.ErrorIs(t, err, errInjected)

	repair, err := f.repairs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepairStatusCompleted, repair.Status)

	barrel, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BarrelStatusRepair, barrel.Status)
	assert.Equal(t, models.LocationLumbBay, barrel.CurrentLocation)

	report, err := f.damages.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.DamageStatusResolved, report.Status)
	assert.Equal(t, movesBefore, f.movements(t, b.ID))

	_, err = f.audit.Verify(ctx)
	require.NoError(t, err)

	_, err = f.repairs.Approve(ctx, r.ID, supervisor)
	require.NoError(t, err)
}
