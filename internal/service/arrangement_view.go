package service

import (
	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
)

func toPlacementView(p models.Placement) dto.PlacementView {
	view := dto.PlacementView{
		ID:         p.ID,
		Position:   p.Position,
		MaterialID: p.MaterialID,
		Seconds:    p.Seconds,
		OrderID:    p.OrderID,
	}
	if p.Material != nil {
		view.MaterialCode = p.Material.Code
		view.MaterialName = p.Material.Name
		view.Kind = string(p.Material.Kind)
		view.RequiredPosition = string(p.Material.RequiredPosition)
		view.ExclusivityGroup = p.Material.ExclusivityGroup
	}
	return view
}

// toArrangementView renders a day with per-zone usage and per-kind totals.
func toArrangementView(day *models.ScheduleDay) dto.ArrangementView {
	ordered := day.Clone()
	ordered.SortZones()

	view := dto.ArrangementView{
		DayID:       day.ID,
		ChannelID:   day.ChannelID,
		Date:        models.DateKey(day.ScheduleDate),
		Status:      string(day.Status),
		Version:     day.Version,
		ConvertedAt: day.ConvertedAt,
		Zones:       make([]dto.ZoneView, 0, len(ordered.Zones)),
	}
	for _, zone := range ordered.Zones {
		zv := dto.ZoneView{
			ID:               zone.ID,
			ProgramID:        zone.ProgramID,
			ProgramOrder:     zone.ProgramOrder,
			BreakSequence:    zone.BreakSequence,
			CapacitySeconds:  zone.CapacitySeconds,
			UsedSeconds:      zone.UsedSeconds(),
			RemainingSeconds: zone.RemainingSeconds(),
			Placements:       make([]dto.PlacementView, 0, len(zone.Placements)),
		}
		view.Stats.CapacitySeconds += zone.CapacitySeconds
		view.Stats.UsedSeconds += zv.UsedSeconds
		for _, p := range zone.Placements {
			zv.Placements = append(zv.Placements, toPlacementView(p))
			view.Stats.PlacementCount++
			if p.Material == nil {
				continue
			}
			switch p.Material.Kind {
			case models.MaterialKindCommercial:
				view.Stats.CommercialSeconds += p.Seconds
			case models.MaterialKindPromo:
				view.Stats.PromoSeconds += p.Seconds
			case models.MaterialKindIDCard:
				view.Stats.IDCardSeconds += p.Seconds
			case models.MaterialKindPublicService:
				view.Stats.PublicServiceSeconds += p.Seconds
			}
		}
		view.Zones = append(view.Zones, zv)
	}
	return view
}

func toPlacedViews(entries []PlacedEntry) []dto.PlacedEntryView {
	views := make([]dto.PlacedEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, dto.PlacedEntryView{
			PlacementID: e.PlacementID,
			MaterialID:  e.Material.ID,
			OrderID:     e.OrderID,
			ChannelID:   e.ChannelID,
			ZoneID:      e.ZoneID,
			Position:    e.Position,
			Seconds:     e.Material.DurationSeconds,
		})
	}
	return views
}

func toUnplacedViews(entries []UnplacedEntry) []dto.UnplacedEntryView {
	views := make([]dto.UnplacedEntryView, 0, len(entries))
	for _, e := range entries {
		view := dto.UnplacedEntryView{
			MaterialID: e.Material.ID,
			OrderID:    e.OrderID,
			Seconds:    e.Material.DurationSeconds,
		}
		if e.Reason != nil {
			view.Rule = string(e.Reason.Rule)
			view.Message = e.Reason.Message
			view.ZoneID = e.Reason.ZoneID
			view.Details = e.Reason.Details
		}
		views = append(views, view)
	}
	return views
}
