package models

import "time"

// AuditAction is the action taxonomy of audit entries.
type AuditAction string

const (
	AuditCreate   AuditAction = "CREATE"
	AuditUpdate   AuditAction = "UPDATE"
	AuditDelete   AuditAction = "DELETE"
	AuditApprove  AuditAction = "APPROVE"
	AuditReject   AuditAction = "REJECT"
	AuditAssign   AuditAction = "ASSIGN"
	AuditStart    AuditAction = "START"
	AuditLogStep  AuditAction = "LOG_STEP"
	AuditComplete AuditAction = "COMPLETE"
	AuditResolve  AuditAction = "RESOLVE"
	AuditMarkRead AuditAction = "MARK_READ"
	AuditScrap    AuditAction = "SCRAP"
	AuditDispose  AuditAction = "DISPOSE"
	AuditDenied   AuditAction = "DENIED"
)

// Entity names used in audit entries.
const (
	EntityBarrel       = "barrel"
	EntityDamage       = "barrel_damage"
	EntityRepair       = "barrel_repair"
	EntityMovement     = "barrel_movement"
	EntityNotification = "notification"
)

// AuditLog is one hash-chained audit entry. Seq is assigned on append and is
// strictly increasing; Hash covers every other field.
type AuditLog struct {
	ID             string         `json:"id"`
	Seq            int64          `json:"seq"`
	Action         AuditAction    `json:"action"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	UserID         string         `json:"user_id"`
	UserRole       string         `json:"user_role"`
	Details        map[string]any `json:"details,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	ResponseStatus int            `json:"response_status"`
	Timestamp      time.Time      `json:"timestamp"`
	PrevHash       string         `json:"prev_hash"`
	Hash           string         `json:"hash"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	UserID     string     `json:"user_id"`
	Action     string     `json:"action"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
	// Ascending lists oldest first; the default is newest first.
	Ascending  bool       `json:"ascending"`
}
