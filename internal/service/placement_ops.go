package service

import (
	"fmt"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

// InsertPlacement validates and inserts material into the zone. On any error
// the day is left unchanged.
func InsertPlacement(day *models.ScheduleDay, zoneID string, material models.Material, position int, orderID, placementID string) (*models.Placement, error) {
	if day.IsConverted() {
		return nil, violationError(models.DayConvertedViolation(zoneID, material.ID))
	}
	zone := day.Zone(zoneID)
	if zone == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("break zone %s not found", zoneID))
	}
	if v := ValidatePlacement(day, zone, material, position); v != nil {
		return nil, violationError(v)
	}
	m := material
	placement := models.Placement{
		ID:         placementID,
		MaterialID: material.ID,
		Seconds:    material.DurationSeconds,
		OrderID:    orderID,
		Material:   &m,
	}
	if err := zone.InsertAt(placement, position); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert placement")
	}
	inserted := zone.Placements[position-1]
	return &inserted, nil
}

// RemovePlacement deletes the placement and compacts the zone.
func RemovePlacement(day *models.ScheduleDay, placementID string) (models.Placement, error) {
	zone, idx := day.FindPlacement(placementID)
	if day.IsConverted() {
		zoneID := ""
		if zone != nil {
			zoneID = zone.ID
		}
		return models.Placement{}, violationError(models.DayConvertedViolation(zoneID, ""))
	}
	if zone == nil {
		return models.Placement{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("placement %s not found", placementID))
	}
	removed, err := zone.RemoveAt(idx)
	if err != nil {
		return models.Placement{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove placement")
	}
	return removed, nil
}

// MovePlacement removes the placement and inserts it into the target zone at
// a position interpreted against the post-remove state. If the insert is
// rejected the removal is undone.
func MovePlacement(day *models.ScheduleDay, placementID, targetZoneID string, position int, newPlacementID string) (*models.Placement, error) {
	source, _ := day.FindPlacement(placementID)
	if source == nil || day.IsConverted() {
		_, err := RemovePlacement(day, placementID)
		return nil, err
	}
	backup := append([]models.Placement(nil), source.Placements...)

	removed, err := RemovePlacement(day, placementID)
	if err != nil {
		return nil, err
	}
	if removed.Material == nil {
		source.Placements = backup
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("placement %s has no material loaded", placementID))
	}

	moved, err := InsertPlacement(day, targetZoneID, *removed.Material, position, removed.OrderID, newPlacementID)
	if err != nil {
		source.Placements = backup
		return nil, err
	}
	return moved, nil
}
