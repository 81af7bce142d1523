package models

import "time"

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementMove     MovementType = "move"
	MovementIn       MovementType = "in"
	MovementOut      MovementType = "out"
	MovementRepair   MovementType = "repair"
	MovementDisposal MovementType = "disposal"
)

// BarrelMovement is an append-only ledger entry. It is never updated.
type BarrelMovement struct {
	ID           string       `json:"id"`
	BarrelID     string       `json:"barrel_id"`
	Type         MovementType `json:"type"`
	VolumeDelta  float64      `json:"volume_delta"`
	FromLocation Location     `json:"from_location,omitempty"`
	ToLocation   Location     `json:"to_location,omitempty"`
	Note         string       `json:"note,omitempty"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
}

// AppendMovementRequest is the public ledger input, used for compensating entries.
type AppendMovementRequest struct {
	Type         MovementType `json:"type"`
	VolumeDelta  float64      `json:"volume_delta"`
	FromLocation Location     `json:"from_location"`
	ToLocation   Location     `json:"to_location"`
	Note         string       `json:"note"`
}

// AdjustVolumeRequest is the body of a volume adjustment.
type AdjustVolumeRequest struct {
	Delta float64 `json:"delta"`
	Note  string  `json:"note"`
}

// RelocateRequest is the body of a relocation.
type RelocateRequest struct {
	ToLocation        Location `json:"to_location"`
	LastKnownLocation string   `json:"last_known_location"`
}
