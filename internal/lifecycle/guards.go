// Package lifecycle holds the pure transition rules of barrels, damage reports
// and repair workflows. Guards evaluate preconditions without side effects.
package lifecycle

import (
	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Class   *apperr.Error
}

// Error converts the guard result to a typed error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	class := r.Class
	if class == nil {
		class = apperr.ErrInvalidTransition
	}
	return class.WithMessage(r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(class *apperr.Error, reason string) GuardResult {
	return GuardResult{Allowed: false, Reason: reason, Class: class}
}

var barrelStatusEdges = map[models.BarrelStatus][]models.BarrelStatus{
	models.BarrelStatusInStorage: {models.BarrelStatusInUse, models.BarrelStatusDamaged, models.BarrelStatusScrap},
	models.BarrelStatusInUse:     {models.BarrelStatusInStorage, models.BarrelStatusDamaged, models.BarrelStatusScrap},
	models.BarrelStatusDamaged:   {models.BarrelStatusRepair, models.BarrelStatusScrap},
	models.BarrelStatusRepair:    {models.BarrelStatusInStorage, models.BarrelStatusDamaged, models.BarrelStatusScrap},
	models.BarrelStatusScrap:     {models.BarrelStatusDisposed},
	models.BarrelStatusDisposed:  {},
}

var conditionEdges = map[models.BarrelCondition][]models.BarrelCondition{
	models.ConditionGood:        {models.ConditionDamaged, models.ConditionScrap},
	models.ConditionDamaged:     {models.ConditionLumbRemoval, models.ConditionRepair, models.ConditionScrap},
	models.ConditionLumbRemoval: {models.ConditionGood, models.ConditionDamaged, models.ConditionScrap},
	models.ConditionRepair:      {models.ConditionGood, models.ConditionDamaged, models.ConditionScrap},
	models.ConditionScrap:       {},
}

var repairEdges = map[models.RepairStatus][]models.RepairStatus{
	models.RepairStatusAssigned:   {models.RepairStatusInProgress},
	models.RepairStatusInProgress: {models.RepairStatusCompleted},
	models.RepairStatusCompleted:  {models.RepairStatusApproved, models.RepairStatusRejected},
	models.RepairStatusApproved:   {},
	models.RepairStatusRejected:   {},
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

// CanAdvanceBarrel evaluates a combined status/condition change. Staying in the
// same status or condition is always allowed except out of disposed.
func CanAdvanceBarrel(fromStatus, toStatus models.BarrelStatus, fromCond, toCond models.BarrelCondition) GuardResult {
	if !toStatus.Valid() || !toCond.Valid() {
		return deny(apperr.ErrInvalidField, "unknown target status or condition")
	}
	if fromStatus == models.BarrelStatusDisposed {
		return deny(apperr.ErrInvalidTransition, "barrel is disposed")
	}
	if fromStatus != toStatus && !contains(barrelStatusEdges[fromStatus], toStatus) {
		return deny(apperr.ErrInvalidTransition, "status "+string(fromStatus)+" cannot move to "+string(toStatus))
	}
	if fromCond != toCond && !contains(conditionEdges[fromCond], toCond) {
		return deny(apperr.ErrInvalidTransition, "condition "+string(fromCond)+" cannot move to "+string(toCond))
	}
	return allow()
}

// CanTransitionRepair evaluates one edge of the repair state machine.
func CanTransitionRepair(from, to models.RepairStatus) GuardResult {
	if contains(repairEdges[from], to) {
		return allow()
	}
	var class *apperr.Error
	switch to {
	case models.RepairStatusInProgress:
		class = apperr.ErrNotAssigned
	case models.RepairStatusCompleted:
		class = apperr.ErrNotInProgress
	case models.RepairStatusApproved, models.RepairStatusRejected:
		class = apperr.ErrNotCompleted
	default:
		class = apperr.ErrInvalidTransition
	}
	return deny(class, "repair is "+string(from)+", cannot move to "+string(to))
}

// CanLogStep allows work-log appends only while work is in progress.
func CanLogStep(status models.RepairStatus) GuardResult {
	if status != models.RepairStatusInProgress {
		return deny(apperr.ErrNotInProgress, "repair is "+string(status)+", work log is closed")
	}
	return allow()
}

// ReportContext provides context for damage report guards.
type ReportContext struct {
	BarrelStatus    models.BarrelStatus
	ActiveReportID  string
	HasActiveReport bool
}

// CanReportDamage requires a live barrel without an active report.
func CanReportDamage(ctx ReportContext) GuardResult {
	if ctx.HasActiveReport {
		return deny(apperr.ErrActiveReportExists, "damage report "+ctx.ActiveReportID+" is still active")
	}
	if ctx.BarrelStatus == models.BarrelStatusScrap || ctx.BarrelStatus == models.BarrelStatusDisposed {
		return deny(apperr.ErrInvalidTransition, "barrel is "+string(ctx.BarrelStatus))
	}
	return allow()
}

// AssignContext provides context for the assignment guard.
type AssignContext struct {
	DamageStatus models.DamageStatus
	// LatestRepairStatus is empty when the report has never been assigned.
	LatestRepairStatus models.RepairStatus
}

// CanAssign allows assignment of an open report, or re-routing of an assigned
// report whose latest workflow was rejected.
func CanAssign(ctx AssignContext) GuardResult {
	switch ctx.DamageStatus {
	case models.DamageStatusOpen:
		return allow()
	case models.DamageStatusAssigned:
		if ctx.LatestRepairStatus == models.RepairStatusRejected {
			return allow()
		}
		return deny(apperr.ErrNotOpen, "report already has an active repair workflow")
	default:
		return deny(apperr.ErrNotOpen, "report is "+string(ctx.DamageStatus))
	}
}

// ResolveContext provides context for the resolve guard.
type ResolveContext struct {
	DamageStatus       models.DamageStatus
	LatestRepairStatus models.RepairStatus
}

// CanResolve requires the paired workflow to be approved.
func CanResolve(ctx ResolveContext) GuardResult {
	if ctx.DamageStatus == models.DamageStatusResolved {
		return deny(apperr.ErrInvalidTransition, "report is already resolved")
	}
	if ctx.LatestRepairStatus != models.RepairStatusApproved {
		return deny(apperr.ErrRepairNotApproved, "paired repair is not approved")
	}
	return allow()
}

// CanAdjustVolume rejects volume changes on barrels out of service.
func CanAdjustVolume(status models.BarrelStatus) GuardResult {
	switch status {
	case models.BarrelStatusScrap, models.BarrelStatusDisposed:
		return deny(apperr.ErrInvalidTransition, "barrel is "+string(status))
	}
	return allow()
}

// CanPlace accepts the locations a barrel may be registered at or moved to by
// hand. The bays and the scrap yard are entered only through the repair and
// scrap cascades.
func CanPlace(to models.Location) GuardResult {
	if !to.Valid() {
		return deny(apperr.ErrInvalidField, "unknown location "+string(to))
	}
	switch to {
	case models.LocationYard, models.LocationLab, models.LocationInTransit:
		return allow()
	}
	return deny(apperr.ErrInvalidTransition, string(to)+" is reached through the repair or scrap workflow only")
}

// CanRelocate allows manual moves of barrels in ordinary service between
// placeable locations.
func CanRelocate(status models.BarrelStatus, from, to models.Location) GuardResult {
	if r := CanPlace(to); !r.Allowed {
		return r
	}
	if status != models.BarrelStatusInStorage && status != models.BarrelStatusInUse {
		return deny(apperr.ErrInvalidTransition, "barrel is "+string(status)+", only barrels in storage or in use can be relocated")
	}
	if from == to {
		return deny(apperr.ErrInvalidField, "barrel is already at "+string(to))
	}
	return allow()
}

// CanScrap rejects scrapping while a damage report is active.
func CanScrap(status models.BarrelStatus, hasActiveReport bool) GuardResult {
	if hasActiveReport {
		return deny(apperr.ErrActiveReportExists, "resolve the active damage report before scrapping")
	}
	if status == models.BarrelStatusScrap || status == models.BarrelStatusDisposed {
		return deny(apperr.ErrInvalidTransition, "barrel is already "+string(status))
	}
	return allow()
}

// CanDispose only allows disposal of scrapped barrels.
func CanDispose(status models.BarrelStatus) GuardResult {
	if status != models.BarrelStatusScrap {
		return deny(apperr.ErrInvalidTransition, "only scrapped barrels can be disposed, barrel is "+string(status))
	}
	return allow()
}

// ConditionFor is the barrel condition while a repair of type t is underway.
func ConditionFor(t models.RepairType) models.BarrelCondition {
	if t == models.RepairTypeLumbRemoval {
		return models.ConditionLumbRemoval
	}
	return models.ConditionRepair
}

// BayFor is where a barrel waits for a repair of type t.
func BayFor(t models.RepairType) models.Location {
	if t == models.RepairTypeLumbRemoval {
		return models.LocationLumbBay
	}
	return models.LocationRepairBay
}

// StatusAfterRelocation derives in-storage/in-use from the destination for
// barrels in ordinary service. Other statuses are left as they are.
func StatusAfterRelocation(current models.BarrelStatus, to models.Location) models.BarrelStatus {
	if current != models.BarrelStatusInStorage && current != models.BarrelStatusInUse {
		return current
	}
	if to == models.LocationYard {
		return models.BarrelStatusInStorage
	}
	return models.BarrelStatusInUse
}
