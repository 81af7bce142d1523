package models

import (
	"math"
	"regexp"
	"strings"
	"time"

	"barrel-backend/internal/apperr"
)

// DefaultCodePattern accepts codes such as "BRL-0042" or "C1" after upper-casing.
const DefaultCodePattern = `^[A-Z0-9]{1,6}(-[A-Z0-9]{1,10})?$`

// DefaultMaxCapacity is the largest barrel capacity accepted, in litres.
const DefaultMaxCapacity = 1000.0

// NormalizeCode trims and upper-cases a barrel code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CodeValidator checks barrel codes against a fixed pattern.
type CodeValidator struct {
	re *regexp.Regexp
}

// NewCodeValidator compiles pattern, falling back to DefaultCodePattern when empty.
func NewCodeValidator(pattern string) (*CodeValidator, error) {
	if pattern == "" {
		pattern = DefaultCodePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &CodeValidator{re: re}, nil
}

// Validate returns the normalized code or ErrInvalidCode.
func (v *CodeValidator) Validate(code string) (string, error) {
	normalized := NormalizeCode(code)
	if !v.re.MatchString(normalized) {
		return "", apperr.ErrInvalidCode.WithMessagef("code %q does not match %s", code, v.re.String())
	}
	return normalized, nil
}

func (s BarrelStatus) Valid() bool {
	switch s {
	case BarrelStatusInStorage, BarrelStatusInUse, BarrelStatusDamaged,
		BarrelStatusRepair, BarrelStatusScrap, BarrelStatusDisposed:
		return true
	}
	return false
}

func (c BarrelCondition) Valid() bool {
	switch c {
	case ConditionGood, ConditionDamaged, ConditionLumbRemoval, ConditionRepair, ConditionScrap:
		return true
	}
	return false
}

func (d DamageType) Valid() bool {
	switch d {
	case DamageTypeLumbed, DamageTypePhysical, DamageTypeOther:
		return true
	}
	return false
}

func (l Location) Valid() bool {
	switch l {
	case LocationYard, LocationLab, LocationLumbBay, LocationRepairBay, LocationScrapYard, LocationInTransit:
		return true
	}
	return false
}

func (s DamageSource) Valid() bool {
	switch s {
	case DamageSourceLab, DamageSourceField, DamageSourceInspection:
		return true
	}
	return false
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

func (t RepairType) Valid() bool {
	switch t {
	case RepairTypeLumbRemoval, RepairTypePhysicalRepair, RepairTypeCleaning, RepairTypeInspection:
		return true
	}
	return false
}

func (t MovementType) Valid() bool {
	switch t {
	case MovementMove, MovementIn, MovementOut, MovementRepair, MovementDisposal:
		return true
	}
	return false
}

// Quantities (volumes, capacities, weights, percentages) are stored with two
// decimals. Bounds are compared in integer hundredths.
const (
	quantityScale = 100
	maxQuantity   = 99999999.99
)

// Hundredths converts q to integer hundredths. It reports false when q is not
// finite or carries more precision than two decimals.
func Hundredths(q float64) (int64, bool) {
	if math.IsNaN(q) || math.IsInf(q, 0) || math.Abs(q) > maxQuantity {
		return 0, false
	}
	scaled := q * quantityScale
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) > 1e-6 {
		return 0, false
	}
	return int64(rounded), true
}

// FromHundredths is the inverse of Hundredths.
func FromHundredths(h int64) float64 {
	return float64(h) / quantityScale
}

// roundHundredths snaps a stored or configured quantity to hundredths.
func roundHundredths(q float64) int64 {
	return int64(math.Round(q * quantityScale))
}

// ValidateQuantity rejects values finer than 0.01 or beyond storage range.
func ValidateQuantity(name string, q float64) error {
	if _, ok := Hundredths(q); !ok {
		return apperr.ErrInvalidField.WithMessagef("%s %v must be finite with at most two decimals", name, q)
	}
	return nil
}

// ValidateCapacity enforces 0 < capacity <= max at two decimals.
func ValidateCapacity(capacity, max float64) error {
	c, ok := Hundredths(capacity)
	if !ok {
		return apperr.ErrInvalidCapacity.WithMessagef("capacity %v must have at most two decimals", capacity)
	}
	if c <= 0 || c > roundHundredths(max) {
		return apperr.ErrInvalidCapacity.WithMessagef("capacity %.2f must be in (0, %.2f]", capacity, max)
	}
	return nil
}

// ValidateVolume enforces 0 <= volume <= capacity.
func ValidateVolume(volume, capacity float64) error {
	v := roundHundredths(volume)
	if v < 0 || v > roundHundredths(capacity) {
		return apperr.ErrOutOfBounds.WithMessagef("volume %.2f outside [0, %.2f]", volume, capacity)
	}
	return nil
}

// AddVolume returns volume+delta computed in hundredths. delta must already be
// a valid quantity.
func AddVolume(volume, delta float64) float64 {
	return FromHundredths(roundHundredths(volume) + roundHundredths(delta))
}

// ValidateLumbPercent enforces 0 <= p <= 100.
func ValidateLumbPercent(p float64) error {
	if err := ValidateQuantity("lumb_percent", p); err != nil {
		return err
	}
	if p < 0 || p > 100 {
		return apperr.ErrInvalidField.WithMessagef("lumb_percent %.2f outside [0, 100]", p)
	}
	return nil
}

// ValidateDates enforces manufacture <= now and expiry >= manufacture.
func ValidateDates(manufacture, expiry *time.Time, now time.Time) error {
	if manufacture != nil && manufacture.After(now) {
		return apperr.ErrInvalidDates.WithMessage("manufacture_date is in the future")
	}
	if manufacture != nil && expiry != nil && expiry.Before(*manufacture) {
		return apperr.ErrInvalidDates.WithMessage("expiry_date is before manufacture_date")
	}
	return nil
}

// ValidateDamageFields applies the discriminant rule on damageType: lumbPercent
// is required and bounded iff the damage is lumbed.
func ValidateDamageFields(damageType DamageType, lumbPercent *float64) error {
	if !damageType.Valid() {
		return apperr.ErrInvalidField.WithMessagef("unknown damage_type %q", damageType)
	}
	if damageType == DamageTypeLumbed {
		if lumbPercent == nil {
			return apperr.ErrMissingLumbPercent.WithMessage("lumb_percent is required for lumbed damage")
		}
		return ValidateLumbPercent(*lumbPercent)
	}
	if lumbPercent != nil {
		return apperr.ErrInvalidField.WithMessagef("lumb_percent only applies to lumbed damage, got %q", damageType)
	}
	return nil
}

func validateWeight(name string, w *float64) error {
	if w == nil {
		return nil
	}
	if err := ValidateQuantity(name, *w); err != nil {
		return err
	}
	if *w < 0 {
		return apperr.ErrInvalidField.WithMessagef("%s must not be negative", name)
	}
	return nil
}

// ValidateBarrel checks every per-record invariant of a barrel.
func ValidateBarrel(b *Barrel, now time.Time) error {
	if b.LastUpdatedBy == "" {
		return apperr.ErrInvalidField.WithMessage("last_updated_by is required")
	}
	if !b.Status.Valid() {
		return apperr.ErrInvalidField.WithMessagef("unknown status %q", b.Status)
	}
	if !b.Condition.Valid() {
		return apperr.ErrInvalidField.WithMessagef("unknown condition %q", b.Condition)
	}
	if !b.CurrentLocation.Valid() {
		return apperr.ErrInvalidField.WithMessagef("unknown location %q", b.CurrentLocation)
	}
	if err := ValidateVolume(b.CurrentVolume, b.Capacity); err != nil {
		return err
	}
	if err := ValidateDates(b.ManufactureDate, b.ExpiryDate, now); err != nil {
		return err
	}
	if b.Condition == ConditionDamaged {
		if err := ValidateDamageFields(b.DamageType, b.LumbPercent); err != nil {
			return err
		}
	} else if b.LumbPercent != nil {
		if err := ValidateLumbPercent(*b.LumbPercent); err != nil {
			return err
		}
	}
	weights := []struct {
		name  string
		value *float64
	}{
		{"base_weight", b.BaseWeight},
		{"empty_weight", b.EmptyWeight},
		{"gross_weight", b.GrossWeight},
	}
	for _, w := range weights {
		if err := validateWeight(w.name, w.value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMovement checks a ledger entry before it is appended. Locations are
// optional but must be known when set, and the delta's sign follows the type.
func ValidateMovement(m *BarrelMovement) error {
	if !m.Type.Valid() {
		return apperr.ErrInvalidField.WithMessagef("unknown movement type %q", m.Type)
	}
	if m.FromLocation != "" && !m.FromLocation.Valid() {
		return apperr.ErrInvalidField.WithMessagef("unknown from_location %q", m.FromLocation)
	}
	if m.ToLocation != "" && !m.ToLocation.Valid() {
		return apperr.ErrInvalidField.WithMessagef("unknown to_location %q", m.ToLocation)
	}
	if err := ValidateQuantity("volume_delta", m.VolumeDelta); err != nil {
		return err
	}
	switch m.Type {
	case MovementIn:
		if m.VolumeDelta < 0 {
			return apperr.ErrInvalidField.WithMessage("an in movement cannot carry a negative volume_delta")
		}
	case MovementOut, MovementDisposal:
		if m.VolumeDelta > 0 {
			return apperr.ErrInvalidField.WithMessagef("a %s movement cannot carry a positive volume_delta", m.Type)
		}
	}
	return nil
}

// NormalizeTarget trims both recipient fields.
func NormalizeTarget(t Target) Target {
	return Target{
		RecipientID:   strings.TrimSpace(t.RecipientID),
		RecipientRole: strings.TrimSpace(t.RecipientRole),
	}
}

// ValidateTarget enforces recipientId XOR recipientRole on a normalized target.
func ValidateTarget(t Target) error {
	hasID := t.RecipientID != ""
	hasRole := t.RecipientRole != ""
	if hasID == hasRole {
		return apperr.ErrInvalidTarget.WithMessage("exactly one of recipient_id or recipient_role is required")
	}
	return nil
}
