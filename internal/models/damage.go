package models

import "time"

// DamageSource says where a defect was found.
type DamageSource string

const (
	DamageSourceLab        DamageSource = "lab"
	DamageSourceField      DamageSource = "field"
	DamageSourceInspection DamageSource = "inspection"
)

// Severity is shared by damage reports and notifications.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DamageStatus is the triage state of a damage report.
type DamageStatus string

const (
	DamageStatusOpen       DamageStatus = "open"
	DamageStatusAssigned   DamageStatus = "assigned"
	DamageStatusInProgress DamageStatus = "in-progress"
	DamageStatusResolved   DamageStatus = "resolved"
)

// BarrelDamage is a reported defect against one barrel.
type BarrelDamage struct {
	ID          string       `json:"id"`
	BarrelID    string       `json:"barrel_id"`
	ReportedBy  string       `json:"reported_by"`
	Source      DamageSource `json:"source"`
	DamageType  DamageType   `json:"damage_type"`
	LumbPercent *float64     `json:"lumb_percent,omitempty"`
	Severity    Severity     `json:"severity"`
	Status      DamageStatus `json:"status"`
	Remarks     string       `json:"remarks,omitempty"`
	AssignedTo  RepairType   `json:"assigned_to,omitempty"`
	AssignedBy  string       `json:"assigned_by,omitempty"`
	AssignedAt  *time.Time   `json:"assigned_at,omitempty"`
	ResolvedBy  string       `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Active reports whether the report still blocks new reports on its barrel.
func (d *BarrelDamage) Active() bool {
	return d.Status != DamageStatusResolved
}

// ReportDamageRequest carries the inputs of DamageIntake.ReportDamage.
type ReportDamageRequest struct {
	BarrelID    string       `json:"barrel_id"`
	DamageType  DamageType   `json:"damage_type"`
	Severity    Severity     `json:"severity"`
	Source      DamageSource `json:"source"`
	LumbPercent *float64     `json:"lumb_percent"`
	Remarks     string       `json:"remarks"`
}

// AssignDamageRequest routes a report to a remediation type and worker.
type AssignDamageRequest struct {
	RepairType RepairType `json:"repair_type"`
	AssignedTo string     `json:"assigned_to"`
}
