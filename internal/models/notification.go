package models

import "time"

// NotificationType is the lifecycle-event taxonomy of notifications.
type NotificationType string

const (
	NotifyDamageReported  NotificationType = "damage_reported"
	NotifyRepairAssigned  NotificationType = "repair_assigned"
	NotifyRepairCompleted NotificationType = "repair_completed"
	NotifyRepairApproved  NotificationType = "repair_approved"
	NotifyRepairRejected  NotificationType = "repair_rejected"
	NotifyBarrelScrapped  NotificationType = "barrel_scrapped"
	NotifyGeneral         NotificationType = "general"
)

// Target addresses a notification to exactly one user or one role.
type Target struct {
	RecipientID   string `json:"recipient_id,omitempty"`
	RecipientRole string `json:"recipient_role,omitempty"`
}

// Notification is a role- or user-targeted message. Only Read/ReadAt/ReadBy
// change after creation.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	RecipientID   string           `json:"recipient_id,omitempty"`
	RecipientRole string           `json:"recipient_role,omitempty"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Priority      Severity         `json:"priority"`
	Data          map[string]any   `json:"data,omitempty"`
	Read          bool             `json:"read"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
	ReadBy        string           `json:"read_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// SendNotificationRequest is the input of Dispatcher.Send.
type SendNotificationRequest struct {
	Type     NotificationType `json:"type"`
	Target   Target           `json:"target"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Priority Severity         `json:"priority"`
	Data     map[string]any   `json:"data"`
}
