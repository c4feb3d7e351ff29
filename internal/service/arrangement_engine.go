package service

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

// PlacedEntry records where the engine put a pool entry.
type PlacedEntry struct {
	PlacementID string          `json:"placement_id"`
	Material    models.Material `json:"material"`
	OrderID     string          `json:"order_id,omitempty"`
	DayID       string          `json:"day_id"`
	ChannelID   string          `json:"channel_id"`
	ZoneID      string          `json:"zone_id"`
	Position    int             `json:"position"`
}

// UnplacedEntry is a pool entry no zone accepted, with the last violation seen.
type UnplacedEntry struct {
	Material models.Material   `json:"material"`
	OrderID  string            `json:"order_id,omitempty"`
	Reason   *models.Violation `json:"reason"`
}

// ArrangementResult partitions the pool into placed and unplaced entries.
// Days holds the arranged copies; the inputs are left untouched.
type ArrangementResult struct {
	Placed   []PlacedEntry
	Unplaced []UnplacedEntry
	Days     []*models.ScheduleDay
	Elapsed  time.Duration
}

// ArrangementEngine runs the deterministic auto-arrangement heuristic.
type ArrangementEngine struct {
	newID func() string
}

// NewArrangementEngine builds an engine. newID defaults to random UUIDs.
func NewArrangementEngine(newID func() string) *ArrangementEngine {
	if newID == nil {
		newID = uuid.NewString
	}
	return &ArrangementEngine{newID: newID}
}

type scanZone struct {
	day  *models.ScheduleDay
	zone *models.BreakZone
}

// Arrange places pool entries into the open zones of days. Constrained
// materials go first (FIRST, FIRST_TWO, LAST, LAST_TWO), then the rest; each
// class is ordered longest first. Constrained entries take the first zone in
// scan order with an admissible slot, unconstrained entries go to the zone
// with the least remaining room that still fits. Identical inputs produce
// identical results.
func (e *ArrangementEngine) Arrange(days []*models.ScheduleDay, pool []models.PoolEntry) ArrangementResult {
	start := time.Now()
	result := ArrangementResult{Days: make([]*models.ScheduleDay, 0, len(days))}

	zones := make([]scanZone, 0)
	anyConverted := false
	for _, day := range days {
		working := day.Clone()
		result.Days = append(result.Days, working)
		if working.IsConverted() {
			anyConverted = true
			continue
		}
		for _, zone := range working.Zones {
			zones = append(zones, scanZone{day: working, zone: zone})
		}
	}
	sort.SliceStable(zones, func(i, j int) bool {
		a, b := zones[i], zones[j]
		if a.zone.BreakSequence != b.zone.BreakSequence {
			return a.zone.BreakSequence < b.zone.BreakSequence
		}
		if a.day.ChannelPriority != b.day.ChannelPriority {
			return a.day.ChannelPriority < b.day.ChannelPriority
		}
		if a.day.ChannelID != b.day.ChannelID {
			return a.day.ChannelID < b.day.ChannelID
		}
		if a.zone.ProgramOrder != b.zone.ProgramOrder {
			return a.zone.ProgramOrder < b.zone.ProgramOrder
		}
		return a.zone.ID < b.zone.ID
	})

	placedIDs := make([]string, 0, len(pool))
	placedBy := make(map[string]PlacedEntry, len(pool))

	for _, entry := range orderPool(pool) {
		material := entry.Material
		var last *models.Violation
		placed := false
		if material.DurationSeconds <= 0 {
			result.Unplaced = append(result.Unplaced, UnplacedEntry{
				Material: material,
				OrderID:  entry.OrderID,
				Reason:   models.InvalidDurationViolation("", material.ID, material.DurationSeconds),
			})
			continue
		}

		for _, target := range candidateZones(zones, material) {
			for _, position := range candidatePositions(material.RequiredPosition, target.zone.Count()) {
				v := ValidatePlacement(target.day, target.zone, material, position)
				if v != nil {
					last = v
					continue
				}
				m := material
				id := e.newID()
				_ = target.zone.InsertAt(models.Placement{
					ID:         id,
					MaterialID: material.ID,
					Seconds:    material.DurationSeconds,
					OrderID:    entry.OrderID,
					Material:   &m,
				}, position)
				placedIDs = append(placedIDs, id)
				placedBy[id] = PlacedEntry{
					PlacementID: id,
					Material:    material,
					OrderID:     entry.OrderID,
					DayID:       target.day.ID,
					ChannelID:   target.day.ChannelID,
					ZoneID:      target.zone.ID,
				}
				placed = true
				break
			}
			if placed {
				break
			}
		}

		if !placed {
			if last == nil {
				if anyConverted && len(zones) == 0 {
					last = models.DayConvertedViolation("", material.ID)
				} else {
					last = models.CapacityViolation("", material.ID, 0, material.DurationSeconds)
				}
			}
			result.Unplaced = append(result.Unplaced, UnplacedEntry{Material: material, OrderID: entry.OrderID, Reason: last})
		}
	}

	// Later inserts can shift earlier placements, so positions are read back
	// from the final zone state.
	finalPositions := make(map[string]int, len(placedIDs))
	for _, z := range zones {
		for _, p := range z.zone.Placements {
			finalPositions[p.ID] = p.Position
		}
	}
	result.Placed = make([]PlacedEntry, 0, len(placedIDs))
	for _, id := range placedIDs {
		entry := placedBy[id]
		entry.Position = finalPositions[id]
		result.Placed = append(result.Placed, entry)
	}
	result.Elapsed = time.Since(start)
	return result
}

func positionClass(r models.RequiredPosition) int {
	switch r {
	case models.RequiredPositionFirst:
		return 0
	case models.RequiredPositionFirstTwo:
		return 1
	case models.RequiredPositionLast:
		return 2
	case models.RequiredPositionLastTwo:
		return 3
	default:
		return 4
	}
}

func orderPool(pool []models.PoolEntry) []models.PoolEntry {
	ordered := append([]models.PoolEntry(nil), pool...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ca, cb := positionClass(a.Material.RequiredPosition), positionClass(b.Material.RequiredPosition); ca != cb {
			return ca < cb
		}
		if a.Material.DurationSeconds != b.Material.DurationSeconds {
			return a.Material.DurationSeconds > b.Material.DurationSeconds
		}
		if a.Material.ID != b.Material.ID {
			return a.Material.ID < b.Material.ID
		}
		return a.OrderID < b.OrderID
	})
	return ordered
}

// candidateZones returns zones in the order they should be tried. Unconstrained
// materials only visit zones with room, tightest first. When nothing has room
// every zone is tried in scan order so the reported violation names a real zone.
func candidateZones(zones []scanZone, material models.Material) []scanZone {
	if material.RequiredPosition != models.RequiredPositionNone {
		return zones
	}
	fitting := make([]scanZone, 0, len(zones))
	for _, z := range zones {
		if z.zone.RemainingSeconds() >= material.DurationSeconds {
			fitting = append(fitting, z)
		}
	}
	if len(fitting) == 0 {
		return zones
	}
	sort.SliceStable(fitting, func(i, j int) bool {
		return fitting[i].zone.RemainingSeconds() < fitting[j].zone.RemainingSeconds()
	})
	return fitting
}

// candidatePositions lists the admissible insert positions for a zone of count
// placements, most preferred first.
func candidatePositions(r models.RequiredPosition, count int) []int {
	switch r {
	case models.RequiredPositionFirst:
		return []int{1}
	case models.RequiredPositionFirstTwo:
		if count == 0 {
			return []int{1}
		}
		return []int{1, 2}
	case models.RequiredPositionLast:
		return []int{count + 1}
	case models.RequiredPositionLastTwo:
		if count == 0 {
			return []int{1}
		}
		return []int{count + 1, count}
	default:
		positions := make([]int, 0, count+1)
		for p := count + 1; p >= 1; p-- {
			positions = append(positions, p)
		}
		return positions
	}
}
