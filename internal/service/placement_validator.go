package service

import (
	"fmt"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

// ValidatePlacement checks whether material may be inserted into zone at the
// 1-based position. A material without a positive duration is refused before
// any rule runs. Rules are then evaluated as capacity, position, exclusivity,
// channel and date eligibility, then day status, and the first failure wins.
// Neither day nor zone is modified. A nil day skips the status rule.
func ValidatePlacement(day *models.ScheduleDay, zone *models.BreakZone, material models.Material, position int) *models.Violation {
	if material.DurationSeconds <= 0 {
		return models.InvalidDurationViolation(zone.ID, material.ID, material.DurationSeconds)
	}
	used := zone.UsedSeconds()
	if used+material.DurationSeconds > zone.CapacitySeconds {
		remaining := zone.CapacitySeconds - used
		if remaining < 0 {
			remaining = 0
		}
		return models.CapacityViolation(zone.ID, material.ID, remaining, material.DurationSeconds)
	}

	if v := checkPosition(zone, material, position); v != nil {
		return v
	}

	if material.ExclusivityGroup != "" {
		for _, existing := range zone.Placements {
			if existing.Material != nil && material.SharesExclusivity(*existing.Material) {
				return models.ExclusivityViolation(zone.ID, material.ID, existing.MaterialID, material.ExclusivityGroup)
			}
		}
	}

	if !material.AllowsChannel(zone.ChannelID) {
		return models.IneligibleViolation(zone.ID, material.ID, fmt.Sprintf("channel %s not allowed", zone.ChannelID))
	}
	if !material.ValidOn(zone.ScheduleDate) {
		return models.IneligibleViolation(zone.ID, material.ID, fmt.Sprintf("date %s outside validity window", models.DateKey(zone.ScheduleDate)))
	}

	if day.IsConverted() {
		return models.DayConvertedViolation(zone.ID, material.ID)
	}
	return nil
}

// checkPosition verifies the candidate's own constraint and that no existing
// placement is pushed out of its required slot by the shift.
func checkPosition(zone *models.BreakZone, material models.Material, position int) *models.Violation {
	count := zone.Count()
	if position < 1 || position > count+1 {
		return models.PositionViolation(zone.ID, material.ID, position, material.RequiredPosition, "")
	}
	final := count + 1
	if !material.RequiredPosition.Admits(position, final) {
		return models.PositionViolation(zone.ID, material.ID, position, material.RequiredPosition, "")
	}
	for _, existing := range zone.Placements {
		if existing.Material == nil || existing.Material.RequiredPosition == models.RequiredPositionNone {
			continue
		}
		shifted := existing.Position
		if shifted >= position {
			shifted++
		}
		if !existing.Material.RequiredPosition.Admits(shifted, final) {
			return models.PositionViolation(zone.ID, material.ID, position, existing.Material.RequiredPosition, existing.MaterialID)
		}
	}
	return nil
}

// VerifyDayIntegrity confirms a loaded day still satisfies the structural
// invariants: contiguous positions, positive durations matching the referenced
// material, occupied seconds within capacity and zones owned by the day.
// Failures are fatal for the day and must not be auto-repaired. Placement rule
// drift (eligibility, exclusivity, position) is reported by Check instead.
func VerifyDayIntegrity(day *models.ScheduleDay) error {
	for _, zone := range day.Zones {
		if zone.DayID != "" && zone.DayID != day.ID {
			return integrityError(day, zone, fmt.Sprintf("zone belongs to day %s", zone.DayID))
		}
		used := 0
		for i, p := range zone.Placements {
			if p.Position != i+1 {
				return integrityError(day, zone, fmt.Sprintf("placement %s at index %d has position %d", p.ID, i, p.Position))
			}
			if p.Seconds <= 0 {
				return integrityError(day, zone, fmt.Sprintf("placement %s has non-positive duration", p.ID))
			}
			if p.Material != nil && p.Seconds != p.Material.DurationSeconds {
				return integrityError(day, zone, fmt.Sprintf("placement %s runs %ds but material %s is %ds", p.ID, p.Seconds, p.MaterialID, p.Material.DurationSeconds))
			}
			used += p.Seconds
		}
		if used > zone.CapacitySeconds {
			return integrityError(day, zone, fmt.Sprintf("used %ds exceeds capacity %ds", used, zone.CapacitySeconds))
		}
	}
	return nil
}

func integrityError(day *models.ScheduleDay, zone *models.BreakZone, reason string) error {
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrDataIntegrity, reason), map[string]interface{}{
		"day_id":     day.ID,
		"channel_id": day.ChannelID,
		"date":       models.DateKey(day.ScheduleDate),
		"zone_id":    zone.ID,
	})
}

// violationError maps a violation to its typed API error.
func violationError(v *models.Violation) error {
	if v == nil {
		return nil
	}
	var base *appErrors.Error
	switch v.Rule {
	case models.RuleCapacityExceeded:
		base = appErrors.ErrCapacityExceeded
	case models.RulePositionConstraintUnmet:
		base = appErrors.ErrPositionConstraint
	case models.RuleExclusivityConflict:
		base = appErrors.ErrExclusivityConflict
	case models.RuleIneligible:
		base = appErrors.ErrIneligibleChannelOrDay
	case models.RuleDayConverted:
		base = appErrors.ErrDayConverted
	default:
		base = appErrors.ErrValidation
	}
	details := map[string]interface{}{}
	for k, val := range v.Details {
		details[k] = val
	}
	if v.ZoneID != "" {
		details["zone_id"] = v.ZoneID
	}
	if v.MaterialID != "" {
		details["material_id"] = v.MaterialID
	}
	appErr := appErrors.WithDetails(appErrors.Clone(base, v.Message), details)
	appErr.Err = v
	return appErr
}
