package service

import (
	"context"
	"sync"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

func version(v int) *int {
	return &v
}

func dayRef() dto.DayRef {
	return dto.DayRef{ChannelID: "TVB1", Date: "2024-05-01"}
}

type editFixture struct {
	svc     *LogEditService
	days    *memoryDays
	catalog *memoryCatalog
	mock    sqlmock.Sqlmock
}

func newEditFixture(t *testing.T, day *models.ScheduleDay, catalogue ...models.Material) *editFixture {
	t.Helper()
	days := newMemoryDays(day)
	catalog := newMemoryCatalog(catalogue...)
	tx, mock := newTxProviderMock(t)
	svc := NewLogEditService(days, catalog, tx, nil, nil, nil, nil)
	svc.newID = sequentialIDs("pl")
	return &editFixture{svc: svc, days: days, catalog: catalog, mock: mock}
}

func seededDay() *models.ScheduleDay {
	z1 := newZone("z1", 120, 1, 1)
	z2 := newZone("z2", 60, 2, 1)
	return newDay("day-1", "TVB1", z1, z2)
}

func TestLogEditServiceInsertPersistsAndBumpsVersion(t *testing.T) {
	f := newEditFixture(t, seededDay(), material("spot", 30))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.Insert(context.Background(), dto.InsertPlacementRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(0),
		ZoneID:          "z1",
		MaterialID:      "spot",
		Position:        1,
		OrderID:         "ord-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pl-1", res.Placement.ID)
	assert.Equal(t, 1, res.Day.Version)
	assert.Equal(t, 30, res.Day.Stats.CommercialSeconds)

	stored := f.days.get("day-1")
	assert.Equal(t, 1, stored.Version)
	require.Len(t, stored.Zone("z1").Placements, 1)
	assert.Equal(t, "ord-1", stored.Zone("z1").Placements[0].OrderID)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogEditServiceInsertRejectsStaleVersion(t *testing.T) {
	f := newEditFixture(t, seededDay(), material("spot", 30))

	_, err := f.svc.Insert(context.Background(), dto.InsertPlacementRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(4),
		ZoneID:          "z1",
		MaterialID:      "spot",
		Position:        1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrVersionConflict)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 0, appErr.Details["current_version"])
	assert.Equal(t, 4, appErr.Details["expected_version"])
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogEditServiceConvertedDayWinsOverVersion(t *testing.T) {
	day := seededDay()
	day.Status = models.ConversionStatusConverted
	day.Version = 3
	f := newEditFixture(t, day, material("spot", 30))

	_, err := f.svc.Insert(context.Background(), dto.InsertPlacementRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(1),
		ZoneID:          "z1",
		MaterialID:      "spot",
		Position:        1,
	})
	assert.ErrorIs(t, err, appErrors.ErrDayConverted)

	_, err = f.svc.Reset(context.Background(), dto.ResetDayRequest{DayRef: dayRef(), ExpectedVersion: version(3)})
	assert.ErrorIs(t, err, appErrors.ErrDayConverted)
	assert.Equal(t, 3, f.days.get("day-1").Version)
}

func TestLogEditServiceInsertViolationLeavesStoreUntouched(t *testing.T) {
	f := newEditFixture(t, seededDay(), material("long", 90))

	_, err := f.svc.Insert(context.Background(), dto.InsertPlacementRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(0),
		ZoneID:          "z2",
		MaterialID:      "long",
		Position:        1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "z2", appErr.Details["zone_id"])

	stored := f.days.get("day-1")
	assert.Equal(t, 0, stored.Version)
	assert.Empty(t, stored.Zone("z2").Placements)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogEditServiceInsertInputErrors(t *testing.T) {
	f := newEditFixture(t, seededDay())
	ctx := context.Background()

	_, err := f.svc.Insert(ctx, dto.InsertPlacementRequest{DayRef: dayRef(), ZoneID: "z1", MaterialID: "x", Position: 1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Insert(ctx, dto.InsertPlacementRequest{
		DayRef:          dto.DayRef{ChannelID: "TVB1", Date: "01/05/2024"},
		ExpectedVersion: version(0), ZoneID: "z1", MaterialID: "x", Position: 1,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Insert(ctx, dto.InsertPlacementRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(0), ZoneID: "z1", MaterialID: "missing", Position: 1,
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Insert(ctx, dto.InsertPlacementRequest{
		DayRef:          dto.DayRef{ChannelID: "TVB9", Date: "2024-05-01"},
		ExpectedVersion: version(0), ZoneID: "z1", MaterialID: "x", Position: 1,
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestLogEditServiceRemoveMoveReset(t *testing.T) {
	day := seededDay()
	fill(t, day.Zone("z1"), material("a", 30), material("b", 20), material("c", 10))
	f := newEditFixture(t, day)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}

	view, err := f.svc.Remove(ctx, dto.RemovePlacementRequest{DayRef: dayRef(), ExpectedVersion: version(0), PlacementID: "p-b"})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Version)
	assert.Len(t, view.Zones[0].Placements, 2)

	moved, err := f.svc.Move(ctx, dto.MovePlacementRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(1),
		PlacementID:     "p-a",
		TargetZoneID:    "z2",
		Position:        1,
	})
	require.NoError(t, err)
	assert.Equal(t, "pl-1", moved.Placement.ID)
	assert.Equal(t, "z2", moved.ZoneID)
	assert.Equal(t, 2, moved.Day.Version)

	stored := f.days.get("day-1")
	require.Len(t, stored.Zone("z1").Placements, 1)
	assert.Equal(t, 1, stored.Zone("z1").Placements[0].Position)
	require.Len(t, stored.Zone("z2").Placements, 1)
	assert.Equal(t, "a", stored.Zone("z2").Placements[0].MaterialID)

	reset, err := f.svc.Reset(ctx, dto.ResetDayRequest{DayRef: dayRef(), ExpectedVersion: version(2)})
	require.NoError(t, err)
	assert.Equal(t, 3, reset.Version)
	assert.Zero(t, reset.Stats.PlacementCount)
	assert.Empty(t, f.days.get("day-1").Zone("z1").Placements)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogEditServiceMoveRejectedKeepsVersion(t *testing.T) {
	day := seededDay()
	fill(t, day.Zone("z1"), material("big", 50))
	fill(t, day.Zone("z2"), material("resident", 40))
	f := newEditFixture(t, day)

	_, err := f.svc.Move(context.Background(), dto.MovePlacementRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(0),
		PlacementID:     "p-big",
		TargetZoneID:    "z2",
		Position:        1,
	})
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	stored := f.days.get("day-1")
	assert.Equal(t, 0, stored.Version)
	assert.Len(t, stored.Zone("z1").Placements, 1)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogEditServiceCheckReportsDrift(t *testing.T) {
	day := seededDay()
	fill(t, day.Zone("z1"), material("ok", 30), material("moved", 20), material("gone", 10))
	restricted := material("moved", 20)
	restricted.Channels = []string{"TVB2"}
	f := newEditFixture(t, day, material("ok", 30), restricted)

	report, err := f.svc.Check(context.Background(), "TVB1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, "day-1", report.DayID)
	require.Len(t, report.Violations, 2)
	assert.Equal(t, "p-moved", report.Violations[0].PlacementID)
	assert.Equal(t, string(models.RuleIneligible), report.Violations[0].Rule)
	assert.Equal(t, "p-gone", report.Violations[1].PlacementID)
	assert.Equal(t, 0, f.days.get("day-1").Version)
}

func TestLogEditServiceGetRendersView(t *testing.T) {
	day := seededDay()
	fill(t, day.Zone("z2"), material("a", 25))
	f := newEditFixture(t, day)

	view, err := f.svc.Get(context.Background(), "TVB1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", view.Date)
	require.Len(t, view.Zones, 2)
	assert.Equal(t, "z1", view.Zones[0].ID)
	assert.Equal(t, 35, view.Zones[1].RemainingSeconds)
	assert.Equal(t, 180, view.Stats.CapacitySeconds)
	assert.Equal(t, 25, view.Stats.UsedSeconds)
}

func TestLogEditServiceConcurrentEditsConflict(t *testing.T) {
	f := newEditFixture(t, seededDay(), material("a", 30), material("b", 20))
	f.mock.MatchExpectationsInOrder(false)
	f.mock.ExpectBegin()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectRollback()
	f.days.holdLoads(2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Insert(context.Background(), dto.InsertPlacementRequest{
				DayRef:          dayRef(),
				ExpectedVersion: version(0),
				ZoneID:          "z1",
				MaterialID:      id,
				Position:        1,
			})
		}(i, id)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case appErrors.FromError(err).Code == appErrors.ErrVersionConflict.Code:
			conflicted++
			assert.Equal(t, 1, appErrors.FromError(err).Details["current_version"])
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	stored := f.days.get("day-1")
	assert.Equal(t, 1, stored.Version)
	assert.Len(t, stored.Zone("z1").Placements, 1)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
