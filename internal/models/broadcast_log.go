package models

import (
	"fmt"
	"sort"
	"time"
)

// BroadcastLog is the frozen export of a converted day. Field order and
// contents are part of the delivery contract.
type BroadcastLog struct {
	DayID        string     `json:"day_id"`
	ChannelID    string     `json:"channel_id"`
	ScheduleDate string     `json:"schedule_date"`
	ConvertedAt  string     `json:"converted_at"`
	Version      int        `json:"version"`
	Breaks       []LogBreak `json:"breaks"`
}

// LogBreak is one break zone in playout order.
type LogBreak struct {
	ZoneID          string     `json:"zone_id"`
	ProgramID       string     `json:"program_id"`
	ProgramOrder    int        `json:"program_order"`
	BreakSequence   int        `json:"break_sequence"`
	CapacitySeconds int        `json:"capacity_seconds"`
	UsedSeconds     int        `json:"used_seconds"`
	Entries         []LogEntry `json:"entries"`
}

// LogEntry is a single aired material.
type LogEntry struct {
	Position    int          `json:"position"`
	PlacementID string       `json:"placement_id"`
	MaterialID  string       `json:"material_id"`
	Kind        MaterialKind `json:"kind"`
	Seconds     int          `json:"seconds"`
	OrderID     string       `json:"order_id,omitempty"`
}

// BroadcastLogRecord is the persisted export.
type BroadcastLogRecord struct {
	DayID        string    `db:"day_id" json:"day_id"`
	ChannelID    string    `db:"channel_id" json:"channel_id"`
	ScheduleDate time.Time `db:"schedule_date" json:"schedule_date"`
	Version      int       `db:"version" json:"version"`
	Payload      []byte    `db:"payload" json:"-"`
	Checksum     string    `db:"checksum" json:"checksum"`
	StoragePath  string    `db:"storage_path" json:"storage_path,omitempty"`
	ConvertedAt  time.Time `db:"converted_at" json:"converted_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewBroadcastLog snapshots the day's zones and placements in playout order.
func NewBroadcastLog(day *ScheduleDay, convertedAt time.Time, version int) BroadcastLog {
	zones := append([]*BreakZone(nil), day.Zones...)
	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].ProgramOrder != zones[j].ProgramOrder {
			return zones[i].ProgramOrder < zones[j].ProgramOrder
		}
		if zones[i].BreakSequence != zones[j].BreakSequence {
			return zones[i].BreakSequence < zones[j].BreakSequence
		}
		return zones[i].ID < zones[j].ID
	})

	log := BroadcastLog{
		DayID:        day.ID,
		ChannelID:    day.ChannelID,
		ScheduleDate: DateKey(day.ScheduleDate),
		ConvertedAt:  convertedAt.UTC().Format(time.RFC3339),
		Version:      version,
		Breaks:       make([]LogBreak, 0, len(zones)),
	}
	for _, zone := range zones {
		brk := LogBreak{
			ZoneID:          zone.ID,
			ProgramID:       zone.ProgramID,
			ProgramOrder:    zone.ProgramOrder,
			BreakSequence:   zone.BreakSequence,
			CapacitySeconds: zone.CapacitySeconds,
			UsedSeconds:     zone.UsedSeconds(),
			Entries:         make([]LogEntry, 0, len(zone.Placements)),
		}
		for _, p := range zone.Placements {
			entry := LogEntry{
				Position:    p.Position,
				PlacementID: p.ID,
				MaterialID:  p.MaterialID,
				Seconds:     p.Seconds,
				OrderID:     p.OrderID,
			}
			if p.Material != nil {
				entry.Kind = p.Material.Kind
			}
			brk.Entries = append(brk.Entries, entry)
		}
		log.Breaks = append(log.Breaks, brk)
	}
	return log
}

// Zones rebuilds break zones from the export. Materials are reduced to the
// fields the log carries.
func (l BroadcastLog) Zones() ([]*BreakZone, error) {
	date, err := ParseScheduleDate(l.ScheduleDate)
	if err != nil {
		return nil, err
	}
	zones := make([]*BreakZone, 0, len(l.Breaks))
	for _, brk := range l.Breaks {
		zone := &BreakZone{
			ID:              brk.ZoneID,
			DayID:           l.DayID,
			ChannelID:       l.ChannelID,
			ScheduleDate:    date,
			ProgramID:       brk.ProgramID,
			ProgramOrder:    brk.ProgramOrder,
			BreakSequence:   brk.BreakSequence,
			CapacitySeconds: brk.CapacitySeconds,
			Placements:      make([]Placement, 0, len(brk.Entries)),
		}
		for i, entry := range brk.Entries {
			if entry.Position != i+1 {
				return nil, fmt.Errorf("zone %s entry %d has position %d", brk.ZoneID, i, entry.Position)
			}
			zone.Placements = append(zone.Placements, Placement{
				ID:         entry.PlacementID,
				ZoneID:     brk.ZoneID,
				MaterialID: entry.MaterialID,
				Position:   entry.Position,
				Seconds:    entry.Seconds,
				OrderID:    entry.OrderID,
				Material: &Material{
					ID:              entry.MaterialID,
					Kind:            entry.Kind,
					DurationSeconds: entry.Seconds,
				},
			})
		}
		zones = append(zones, zone)
	}
	return zones, nil
}
