package models

import "fmt"

// ViolationRule names the placement rule a candidate failed.
type ViolationRule string

const (
	RuleCapacityExceeded        ViolationRule = "CAPACITY_EXCEEDED"
	RulePositionConstraintUnmet ViolationRule = "POSITION_CONSTRAINT_UNMET"
	RuleExclusivityConflict     ViolationRule = "EXCLUSIVITY_CONFLICT"
	RuleIneligible              ViolationRule = "INELIGIBLE_FOR_CHANNEL_OR_DATE"
	RuleDayConverted            ViolationRule = "DAY_CONVERTED"
	RuleInvalidMaterial         ViolationRule = "INVALID_MATERIAL"
)

// Violation is the first rule a candidate placement broke.
type Violation struct {
	Rule       ViolationRule          `json:"rule"`
	Message    string                 `json:"message"`
	ZoneID     string                 `json:"zone_id,omitempty"`
	MaterialID string                 `json:"material_id,omitempty"`
	Position   int                    `json:"position,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`

	Remaining             int    `json:"-"`
	Required              int    `json:"-"`
	ConflictingMaterialID string `json:"-"`
	DisplacedMaterialID   string `json:"-"`
}

func (v *Violation) Error() string {
	return v.Message
}

// CapacityViolation reports how many seconds were left against how many were needed.
func CapacityViolation(zoneID, materialID string, remaining, required int) *Violation {
	return &Violation{
		Rule:       RuleCapacityExceeded,
		Message:    fmt.Sprintf("zone %s has %ds remaining, %ds required", zoneID, remaining, required),
		ZoneID:     zoneID,
		MaterialID: materialID,
		Remaining:  remaining,
		Required:   required,
		Details:    map[string]interface{}{"remaining": remaining, "required": required},
	}
}

// PositionViolation reports an unmet position constraint. displaced is set
// when the insert would push an existing placement out of its required slot.
func PositionViolation(zoneID, materialID string, position int, required RequiredPosition, displaced string) *Violation {
	v := &Violation{
		Rule:                RulePositionConstraintUnmet,
		ZoneID:              zoneID,
		MaterialID:          materialID,
		Position:            position,
		DisplacedMaterialID: displaced,
		Details:             map[string]interface{}{"position": position},
	}
	if required != RequiredPositionNone {
		v.Details["required_position"] = string(required)
	}
	if displaced != "" {
		v.Message = fmt.Sprintf("insert at %d would move %s out of its %s slot", position, displaced, required)
		v.Details["displaced_material_id"] = displaced
	} else {
		v.Message = fmt.Sprintf("position %d does not satisfy %s", position, describeRequired(required))
	}
	return v
}

// ExclusivityViolation names the clashing material and the shared group.
func ExclusivityViolation(zoneID, materialID, conflicting, group string) *Violation {
	return &Violation{
		Rule:                  RuleExclusivityConflict,
		Message:               fmt.Sprintf("material %s shares exclusivity group %s with %s", materialID, group, conflicting),
		ZoneID:                zoneID,
		MaterialID:            materialID,
		ConflictingMaterialID: conflicting,
		Details:               map[string]interface{}{"conflicting_material_id": conflicting, "group": group},
	}
}

// IneligibleViolation reports a channel or date mismatch.
func IneligibleViolation(zoneID, materialID, reason string) *Violation {
	return &Violation{
		Rule:       RuleIneligible,
		Message:    fmt.Sprintf("material %s is not eligible: %s", materialID, reason),
		ZoneID:     zoneID,
		MaterialID: materialID,
		Details:    map[string]interface{}{"reason": reason},
	}
}

// DayConvertedViolation reports an attempt to touch a frozen day.
func DayConvertedViolation(zoneID, materialID string) *Violation {
	return &Violation{
		Rule:       RuleDayConverted,
		Message:    "schedule day is converted and frozen",
		ZoneID:     zoneID,
		MaterialID: materialID,
	}
}

// InvalidDurationViolation reports a material that cannot occupy air time.
func InvalidDurationViolation(zoneID, materialID string, seconds int) *Violation {
	return &Violation{
		Rule:       RuleInvalidMaterial,
		Message:    fmt.Sprintf("material %s has non-positive duration %ds", materialID, seconds),
		ZoneID:     zoneID,
		MaterialID: materialID,
		Details:    map[string]interface{}{"duration_seconds": seconds},
	}
}

func describeRequired(r RequiredPosition) string {
	if r == RequiredPositionNone {
		return "the zone bounds"
	}
	return string(r)
}
