package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the wire format for schedule dates.
const DateLayout = "2006-01-02"

// ErrStaleVersion is returned by stores when a conditional write finds a
// different version (or a frozen day) than the caller expected.
var ErrStaleVersion = errors.New("schedule day version is stale")

// ConversionStatus tracks whether a day may still be edited.
type ConversionStatus string

const (
	ConversionStatusOpen      ConversionStatus = "OPEN"
	ConversionStatusConverted ConversionStatus = "CONVERTED"
)

// DateKey formats a date for comparisons and cache keys.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseScheduleDate parses a YYYY-MM-DD date.
func ParseScheduleDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule date %q: %w", raw, err)
	}
	return t, nil
}

// ScheduleDay is the unit of editing and conversion: one channel on one date.
type ScheduleDay struct {
	ID              string           `db:"id" json:"id"`
	ChannelID       string           `db:"channel_id" json:"channel_id"`
	ChannelPriority int              `db:"channel_priority" json:"channel_priority"`
	ScheduleDate    time.Time        `db:"schedule_date" json:"schedule_date"`
	Status          ConversionStatus `db:"status" json:"status"`
	Version         int              `db:"version" json:"version"`
	ConvertedAt     *time.Time       `db:"converted_at" json:"converted_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
	Zones           []*BreakZone     `db:"-" json:"zones"`
}

// IsConverted reports whether the day is frozen.
func (d *ScheduleDay) IsConverted() bool {
	return d != nil && d.Status == ConversionStatusConverted
}

// Zone looks up a break zone by id.
func (d *ScheduleDay) Zone(id string) *BreakZone {
	for _, zone := range d.Zones {
		if zone.ID == id {
			return zone
		}
	}
	return nil
}

// FindPlacement returns the zone and index holding the placement.
func (d *ScheduleDay) FindPlacement(placementID string) (*BreakZone, int) {
	for _, zone := range d.Zones {
		for i := range zone.Placements {
			if zone.Placements[i].ID == placementID {
				return zone, i
			}
		}
	}
	return nil, -1
}

// SortZones orders zones by program order then break sequence.
func (d *ScheduleDay) SortZones() {
	sort.SliceStable(d.Zones, func(i, j int) bool {
		a, b := d.Zones[i], d.Zones[j]
		if a.ProgramOrder != b.ProgramOrder {
			return a.ProgramOrder < b.ProgramOrder
		}
		if a.BreakSequence != b.BreakSequence {
			return a.BreakSequence < b.BreakSequence
		}
		return a.ID < b.ID
	})
}

// Clone returns a deep copy. Material pointers are shared since catalogue
// entries are read only.
func (d *ScheduleDay) Clone() *ScheduleDay {
	if d == nil {
		return nil
	}
	clone := *d
	if d.ConvertedAt != nil {
		at := *d.ConvertedAt
		clone.ConvertedAt = &at
	}
	clone.Zones = make([]*BreakZone, len(d.Zones))
	for i, zone := range d.Zones {
		clone.Zones[i] = zone.Clone()
	}
	return &clone
}

// ClearPlacements empties every zone.
func (d *ScheduleDay) ClearPlacements() int {
	removed := 0
	for _, zone := range d.Zones {
		removed += len(zone.Placements)
		zone.Placements = nil
	}
	return removed
}

// BreakZone is an ad break slot with fixed capacity in seconds.
type BreakZone struct {
	ID              string      `db:"id" json:"id"`
	DayID           string      `db:"day_id" json:"day_id"`
	ChannelID       string      `db:"channel_id" json:"channel_id"`
	ScheduleDate    time.Time   `db:"schedule_date" json:"schedule_date"`
	ProgramID       string      `db:"program_id" json:"program_id"`
	ProgramOrder    int         `db:"program_order" json:"program_order"`
	BreakSequence   int         `db:"break_sequence" json:"break_sequence"`
	CapacitySeconds int         `db:"capacity_seconds" json:"capacity_seconds"`
	Placements      []Placement `db:"-" json:"placements"`
}

// Count returns the number of placements.
func (z *BreakZone) Count() int {
	return len(z.Placements)
}

// UsedSeconds sums the placed durations.
func (z *BreakZone) UsedSeconds() int {
	total := 0
	for _, p := range z.Placements {
		total += p.Seconds
	}
	return total
}

// RemainingSeconds is capacity minus used, never negative.
func (z *BreakZone) RemainingSeconds() int {
	remaining := z.CapacitySeconds - z.UsedSeconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clone copies the zone and its placements.
func (z *BreakZone) Clone() *BreakZone {
	clone := *z
	clone.Placements = append([]Placement(nil), z.Placements...)
	return &clone
}

// InsertAt places p at the 1-based position, shifting later placements down.
// Callers validate the placement first.
func (z *BreakZone) InsertAt(p Placement, position int) error {
	if position < 1 || position > len(z.Placements)+1 {
		return fmt.Errorf("position %d outside 1..%d", position, len(z.Placements)+1)
	}
	p.ZoneID = z.ID
	idx := position - 1
	z.Placements = append(z.Placements, Placement{})
	copy(z.Placements[idx+1:], z.Placements[idx:])
	z.Placements[idx] = p
	z.renumber()
	return nil
}

// RemoveAt drops the placement at index and closes the gap.
func (z *BreakZone) RemoveAt(index int) (Placement, error) {
	if index < 0 || index >= len(z.Placements) {
		return Placement{}, fmt.Errorf("index %d outside zone", index)
	}
	removed := z.Placements[index]
	z.Placements = append(z.Placements[:index], z.Placements[index+1:]...)
	z.renumber()
	return removed, nil
}

func (z *BreakZone) renumber() {
	for i := range z.Placements {
		z.Placements[i].Position = i + 1
	}
}

// Placement assigns a material to a position inside a zone.
type Placement struct {
	ID         string    `db:"id" json:"id"`
	ZoneID     string    `db:"zone_id" json:"zone_id"`
	MaterialID string    `db:"material_id" json:"material_id"`
	Position   int       `db:"position" json:"position"`
	Seconds    int       `db:"seconds" json:"seconds"`
	OrderID    string    `db:"order_id" json:"order_id,omitempty"`
	Material   *Material `db:"-" json:"material,omitempty"`
}
