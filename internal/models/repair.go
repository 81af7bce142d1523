package models

import "time"

// RepairType is the remediation applied by a repair workflow.
type RepairType string

const (
	RepairTypeLumbRemoval    RepairType = "lumb-removal"
	RepairTypePhysicalRepair RepairType = "physical-repair"
	RepairTypeCleaning       RepairType = "cleaning"
	RepairTypeInspection     RepairType = "inspection"
)

// RepairStatus is the workflow state. Approved and rejected are terminal.
type RepairStatus string

const (
	RepairStatusAssigned   RepairStatus = "assigned"
	RepairStatusInProgress RepairStatus = "in-progress"
	RepairStatusCompleted  RepairStatus = "completed"
	RepairStatusApproved   RepairStatus = "approved"
	RepairStatusRejected   RepairStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s RepairStatus) Terminal() bool {
	return s == RepairStatusApproved || s == RepairStatusRejected
}

// WorkLogEntry is one append-only step of a repair.
type WorkLogEntry struct {
	Seq       int       `json:"seq"`
	Step      string    `json:"step"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// BarrelRepair is one repair workflow instance for a damage report.
type BarrelRepair struct {
	ID              string         `json:"id"`
	BarrelID        string         `json:"barrel_id"`
	DamageID        string         `json:"damage_id"`
	Type            RepairType     `json:"type"`
	AssignedTo      string         `json:"assigned_to"`
	AssignedBy      string         `json:"assigned_by"`
	Status          RepairStatus   `json:"status"`
	WorkLog         []WorkLogEntry `json:"work_log"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ApprovedBy      string         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectedBy      string         `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// RepairPatch lists the fields a status transition may set alongside the new
// status. Nil fields are left unchanged.
type RepairPatch struct {
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectedBy      *string
	RejectedAt      *time.Time
	RejectionReason *string
}

// Apply copies the non-nil fields of p onto r.
func (p RepairPatch) Apply(r *BarrelRepair) {
	if p.StartedAt != nil {
		r.StartedAt = p.StartedAt
	}
	if p.CompletedAt != nil {
		r.CompletedAt = p.CompletedAt
	}
	if p.ApprovedBy != nil {
		r.ApprovedBy = *p.ApprovedBy
	}
	if p.ApprovedAt != nil {
		r.ApprovedAt = p.ApprovedAt
	}
	if p.RejectedBy != nil {
		r.RejectedBy = *p.RejectedBy
	}
	if p.RejectedAt != nil {
		r.RejectedAt = p.RejectedAt
	}
	if p.RejectionReason != nil {
		r.RejectionReason = *p.RejectionReason
	}
}

// LogStepRequest appends to a repair work log.
type LogStepRequest struct {
	Step string `json:"step"`
	Note string `json:"note"`
}

// RejectRepairRequest carries the mandatory rejection reason.
type RejectRepairRequest struct {
	Reason string `json:"reason"`
}
