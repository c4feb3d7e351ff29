package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

func entries(materials ...models.Material) []models.PoolEntry {
	pool := make([]models.PoolEntry, 0, len(materials))
	for _, m := range materials {
		pool = append(pool, models.PoolEntry{Material: m, OrderID: "ord-" + m.ID})
	}
	return pool
}

func TestArrangeConstrainedFirstAndReadsBackFinalPositions(t *testing.T) {
	day := newDay("day-1", "TVB1", newZone("z1", 120, 1, 1))
	engine := NewArrangementEngine(sequentialIDs("pl"))

	result := engine.Arrange([]*models.ScheduleDay{day}, entries(
		material("a", 30),
		pinned("b", 10, models.RequiredPositionLast),
		pinned("c", 20, models.RequiredPositionFirst),
	))

	require.Len(t, result.Placed, 3)
	assert.Empty(t, result.Unplaced)
	got := map[string]int{}
	for _, p := range result.Placed {
		got[p.Material.ID] = p.Position
	}
	assert.Equal(t, map[string]int{"c": 1, "a": 2, "b": 3}, got)
	assert.Equal(t, "c", result.Placed[0].Material.ID)
	assert.Equal(t, "ord-c", result.Placed[0].OrderID)

	arranged := result.Days[0].Zones[0]
	require.NoError(t, VerifyDayIntegrity(result.Days[0]))
	assert.Equal(t, 60, arranged.UsedSeconds())
}

func TestArrangeSecondFirstMaterialIsUnplaced(t *testing.T) {
	day := newDay("day-1", "TVB1", newZone("z1", 180, 1, 1))
	engine := NewArrangementEngine(sequentialIDs("pl"))

	result := engine.Arrange([]*models.ScheduleDay{day}, entries(
		pinned("first-a", 30, models.RequiredPositionFirst),
		pinned("first-b", 20, models.RequiredPositionFirst),
	))

	require.Len(t, result.Placed, 1)
	assert.Equal(t, "first-a", result.Placed[0].Material.ID)
	require.Len(t, result.Unplaced, 1)
	assert.Equal(t, "first-b", result.Unplaced[0].Material.ID)
	require.NotNil(t, result.Unplaced[0].Reason)
	assert.Equal(t, models.RulePositionConstraintUnmet, result.Unplaced[0].Reason.Rule)
}

func TestArrangeUnconstrainedPrefersTightestZone(t *testing.T) {
	day := newDay("day-1", "TVB1", newZone("roomy", 100, 1, 1), newZone("tight", 40, 2, 1))
	engine := NewArrangementEngine(sequentialIDs("pl"))

	result := engine.Arrange([]*models.ScheduleDay{day}, entries(material("spot", 30)))

	require.Len(t, result.Placed, 1)
	assert.Equal(t, "tight", result.Placed[0].ZoneID)
}

func TestArrangeReportsCapacityWhenNothingFits(t *testing.T) {
	day := newDay("day-1", "TVB1", newZone("z1", 20, 1, 1))
	engine := NewArrangementEngine(sequentialIDs("pl"))

	result := engine.Arrange([]*models.ScheduleDay{day}, entries(material("long", 45)))

	require.Len(t, result.Unplaced, 1)
	reason := result.Unplaced[0].Reason
	require.NotNil(t, reason)
	assert.Equal(t, models.RuleCapacityExceeded, reason.Rule)
	assert.Equal(t, "z1", reason.ZoneID)
}

func TestArrangeScansChannelsByPriority(t *testing.T) {
	low := newDay("day-low", "TVB1", newZone("z-low", 60, 1, 1))
	low.ChannelPriority = 2
	high := newDay("day-high", "TVB2", newZone("z-high", 60, 1, 1))
	high.ChannelPriority = 1
	engine := NewArrangementEngine(sequentialIDs("pl"))

	result := engine.Arrange([]*models.ScheduleDay{low, high}, entries(pinned("opener", 15, models.RequiredPositionFirst)))

	require.Len(t, result.Placed, 1)
	assert.Equal(t, "TVB2", result.Placed[0].ChannelID)
	assert.Equal(t, "day-high", result.Placed[0].DayID)
}

func TestArrangeIsDeterministicAndLeavesInputsUntouched(t *testing.T) {
	build := func() []*models.ScheduleDay {
		a := newZone("a1", 90, 1, 1)
		b := newZone("a2", 60, 2, 1)
		c := newZone("b1", 120, 1, 2)
		fill(t, a, material("resident", 20))
		return []*models.ScheduleDay{newDay("day-1", "TVB1", a, b, c)}
	}
	pool := entries(
		material("m1", 30), material("m2", 15), grouped("m3", 20, "bank"), grouped("m4", 20, "bank"),
		pinned("m5", 10, models.RequiredPositionLastTwo), pinned("m6", 5, models.RequiredPositionFirstTwo),
		material("m7", 45), material("m8", 60),
	)

	days := build()
	before := layout(days[0])
	first := NewArrangementEngine(sequentialIDs("pl")).Arrange(days, pool)
	second := NewArrangementEngine(sequentialIDs("pl")).Arrange(build(), pool)

	assert.Equal(t, before, layout(days[0]))
	assert.Equal(t, first.Placed, second.Placed)
	assert.Equal(t, first.Unplaced, second.Unplaced)
	assert.Equal(t, layout(first.Days[0]), layout(second.Days[0]))
	assert.Equal(t, len(pool), len(first.Placed)+len(first.Unplaced))
	require.NoError(t, VerifyDayIntegrity(first.Days[0]))
}

func TestArrangeConvertedDayPlacesNothing(t *testing.T) {
	day := newDay("day-1", "TVB1", newZone("z1", 180, 1, 1))
	day.Status = models.ConversionStatusConverted
	engine := NewArrangementEngine(sequentialIDs("pl"))

	result := engine.Arrange([]*models.ScheduleDay{day}, entries(material("a", 30), material("b", 20)))

	assert.Empty(t, result.Placed)
	require.Len(t, result.Unplaced, 2)
	for _, u := range result.Unplaced {
		assert.Equal(t, models.RuleDayConverted, u.Reason.Rule)
	}
	assert.Empty(t, result.Days[0].Zones[0].Placements)
}

func TestArrangeRefusesNonPositiveDurations(t *testing.T) {
	day := newDay("day-1", "TVB1", newZone("z1", 60, 1, 1))
	engine := NewArrangementEngine(sequentialIDs("pl"))

	result := engine.Arrange([]*models.ScheduleDay{day}, entries(
		material("neg", -30),
		material("zero", 0),
		material("ok", 30),
	))

	require.Len(t, result.Placed, 1)
	assert.Equal(t, "ok", result.Placed[0].Material.ID)
	require.Len(t, result.Unplaced, 2)
	for _, u := range result.Unplaced {
		require.NotNil(t, u.Reason)
		assert.Equal(t, models.RuleInvalidMaterial, u.Reason.Rule)
	}
	require.NoError(t, VerifyDayIntegrity(result.Days[0]))
	assert.Equal(t, 30, result.Days[0].Zones[0].UsedSeconds())
}
