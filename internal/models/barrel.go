package models

import "time"

// BarrelStatus is the coarse operational state of a barrel.
type BarrelStatus string

const (
	BarrelStatusInStorage BarrelStatus = "in-storage"
	BarrelStatusInUse     BarrelStatus = "in-use"
	BarrelStatusDamaged   BarrelStatus = "damaged"
	BarrelStatusRepair    BarrelStatus = "repair"
	BarrelStatusScrap     BarrelStatus = "scrap"
	BarrelStatusDisposed  BarrelStatus = "disposed"
)

// BarrelCondition is the finer quality state driving repair eligibility.
type BarrelCondition string

const (
	ConditionGood        BarrelCondition = "good"
	ConditionDamaged     BarrelCondition = "damaged"
	ConditionLumbRemoval BarrelCondition = "lumb-removal"
	ConditionRepair      BarrelCondition = "repair"
	ConditionScrap       BarrelCondition = "scrap"
)

// DamageType describes a reported defect. The empty value means none.
type DamageType string

const (
	DamageTypeNone     DamageType = ""
	DamageTypeLumbed   DamageType = "lumbed"
	DamageTypePhysical DamageType = "physical"
	DamageTypeOther    DamageType = "other"
)

// Location is a physical area of the plant.
type Location string

const (
	LocationYard      Location = "yard"
	LocationLab       Location = "lab"
	LocationLumbBay   Location = "lumb-bay"
	LocationRepairBay Location = "repair-bay"
	LocationScrapYard Location = "scrap-yard"
	LocationInTransit Location = "in-transit"
)

// MaterialAttrs holds batch metadata of the barrel's material.
type MaterialAttrs struct {
	Material    string `json:"material,omitempty"`
	BatchNumber string `json:"batch_number,omitempty"`
	Supplier    string `json:"supplier,omitempty"`
	Grade       string `json:"grade,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Barrel is a reusable physical container.
type Barrel struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Capacity          float64         `json:"capacity"`
	CurrentVolume     float64         `json:"current_volume"`
	Status            BarrelStatus    `json:"status"`
	Condition         BarrelCondition `json:"condition"`
	DamageType        DamageType      `json:"damage_type,omitempty"`
	LumbPercent       *float64        `json:"lumb_percent,omitempty"`
	CurrentLocation   Location        `json:"current_location"`
	LastKnownLocation string          `json:"last_known_location,omitempty"`
	BaseWeight        *float64        `json:"base_weight,omitempty"`
	EmptyWeight       *float64        `json:"empty_weight,omitempty"`
	GrossWeight       *float64        `json:"gross_weight,omitempty"`
	Material          MaterialAttrs   `json:"material"`
	ManufactureDate   *time.Time      `json:"manufacture_date,omitempty"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedBy         string          `json:"created_by"`
	LastUpdatedBy     string          `json:"last_updated_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RegisterBarrelRequest carries the inputs of Registry.Register.
type RegisterBarrelRequest struct {
	Code              string        `json:"code"`
	Capacity          float64       `json:"capacity"`
	Location          Location      `json:"location"`
	LastKnownLocation string        `json:"last_known_location"`
	Material          MaterialAttrs `json:"material"`
	BaseWeight        *float64      `json:"base_weight"`
	EmptyWeight       *float64      `json:"empty_weight"`
	GrossWeight       *float64      `json:"gross_weight"`
	ManufactureDate   *time.Time    `json:"manufacture_date"`
	ExpiryDate        *time.Time    `json:"expiry_date"`
	Notes             string        `json:"notes"`
}

// UpdateBarrelAttrsRequest patches descriptive attributes. Nil fields are left
// unchanged. Status, condition, volume and location are not reachable here.
type UpdateBarrelAttrsRequest struct {
	LastKnownLocation *string        `json:"last_known_location"`
	Material          *MaterialAttrs `json:"material"`
	BaseWeight        *float64       `json:"base_weight"`
	EmptyWeight       *float64       `json:"empty_weight"`
	GrossWeight       *float64       `json:"gross_weight"`
	LumbPercent       *float64       `json:"lumb_percent"`
	ManufactureDate   *time.Time     `json:"manufacture_date"`
	ExpiryDate        *time.Time     `json:"expiry_date"`
	Notes             *string        `json:"notes"`
}

// BarrelFilter narrows Registry.List.
type BarrelFilter struct {
	Status    BarrelStatus    `json:"status"`
	Condition BarrelCondition `json:"condition"`
	Location  Location        `json:"location"`
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
}
