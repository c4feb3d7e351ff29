package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

type arrangeFixture struct {
	*editFixture
	arranger *ArrangementService
}

func newArrangeFixture(t *testing.T, cfg ArrangementConfig, days []*models.ScheduleDay, catalogue ...models.Material) *arrangeFixture {
	t.Helper()
	f := newEditFixture(t, days[0], catalogue...)
	for _, d := range days[1:] {
		f.days.days[d.ID] = d.Clone()
	}
	tx, mock := newTxProviderMock(t)
	f.mock = mock
	svc := NewArrangementService(f.days, f.catalog, tx, NewArrangementEngine(sequentialIDs("auto")), nil, nil, nil, nil, cfg)
	t.Cleanup(svc.Close)
	return &arrangeFixture{editFixture: f, arranger: svc}
}

func poolOf(ids ...string) []dto.PoolEntryRequest {
	pool := make([]dto.PoolEntryRequest, 0, len(ids))
	for _, id := range ids {
		pool = append(pool, dto.PoolEntryRequest{MaterialID: id, OrderID: "ord-" + id})
	}
	return pool
}

func TestArrangementServiceAutoArrangeSaves(t *testing.T) {
	f := newArrangeFixture(t, ArrangementConfig{}, []*models.ScheduleDay{seededDay()},
		material("a", 40), pinned("open", 10, models.RequiredPositionFirst))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	pool := append(poolOf("a", "open"), dto.PoolEntryRequest{
		Material: &dto.InlineMaterialInput{ID: "inline", DurationSeconds: 15, Kind: "G"},
	})
	res, err := f.arranger.AutoArrange(context.Background(), dto.AutoArrangeRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(0),
		Pool:            pool,
	})
	require.NoError(t, err)
	assert.Len(t, res.Placed, 3)
	assert.Empty(t, res.Unplaced)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, "open", res.Placed[0].MaterialID)
	assert.Equal(t, 1, res.Placed[0].Position)

	stored := f.days.get("day-1")
	assert.Equal(t, 1, stored.Version)
	total := 0
	for _, z := range stored.Zones {
		total += z.UsedSeconds()
	}
	assert.Equal(t, 65, total)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestArrangementServiceDryRunDoesNotPersist(t *testing.T) {
	f := newArrangeFixture(t, ArrangementConfig{}, []*models.ScheduleDay{seededDay()}, material("a", 40))

	res, err := f.arranger.AutoArrange(context.Background(), dto.AutoArrangeRequest{
		DayRef:          dayRef(),
		ExpectedVersion: version(0),
		Pool:            poolOf("a"),
		DryRun:          true,
	})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Placed, 1)
	assert.Equal(t, 0, res.Version)
	assert.Equal(t, 0, f.days.get("day-1").Version)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestArrangementServiceRejectsBadPools(t *testing.T) {
	f := newArrangeFixture(t, ArrangementConfig{MaxPoolSize: 2}, []*models.ScheduleDay{seededDay()}, material("a", 40))
	ctx := context.Background()

	_, err := f.arranger.AutoArrange(ctx, dto.AutoArrangeRequest{
		DayRef: dayRef(), ExpectedVersion: version(0), Pool: poolOf("a", "zz", "yy"),
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.arranger.AutoArrange(ctx, dto.AutoArrangeRequest{
		DayRef: dayRef(), ExpectedVersion: version(0), Pool: poolOf("zz", "a"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, []string{"zz"}, appErr.Details["missing_material_ids"])

	_, err = f.arranger.AutoArrange(ctx, dto.AutoArrangeRequest{
		DayRef: dayRef(), ExpectedVersion: version(2), Pool: poolOf("a"),
	})
	assert.ErrorIs(t, err, appErrors.ErrVersionConflict)
}

func TestArrangementServiceConvertedDayReturnsEverythingUnplaced(t *testing.T) {
	day := seededDay()
	day.Status = models.ConversionStatusConverted
	day.Version = 5
	f := newArrangeFixture(t, ArrangementConfig{}, []*models.ScheduleDay{day}, material("a", 40), material("b", 10))

	res, err := f.arranger.AutoArrange(context.Background(), dto.AutoArrangeRequest{
		DayRef: dayRef(), ExpectedVersion: version(1), Pool: poolOf("a", "b"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Placed)
	require.Len(t, res.Unplaced, 2)
	assert.Equal(t, string(models.RuleDayConverted), res.Unplaced[0].Rule)
	assert.Equal(t, 5, res.Version)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestArrangementServiceBatchReportsPerChannel(t *testing.T) {
	first := seededDay()
	second := newDay("day-2", "TVB2", newZone("y1", 60, 1, 1))
	second.ChannelPriority = 1
	f := newArrangeFixture(t, ArrangementConfig{BatchWorkers: 2}, []*models.ScheduleDay{first, second},
		material("a", 40), material("b", 30))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.arranger.AutoArrangeBatch(context.Background(), dto.BatchAutoArrangeRequest{
		Date: "2024-05-01",
		Channels: []dto.BatchChannelRequest{
			{ChannelID: "TVB1", ExpectedVersion: version(0)},
			{ChannelID: "TVB2", ExpectedVersion: version(7)},
			{ChannelID: "TVB3", ExpectedVersion: version(0)},
		},
		Pool: poolOf("a", "b"),
	})
	require.NoError(t, err)
	require.Len(t, res.Channels, 3)

	assert.Equal(t, "TVB1", res.Channels[0].ChannelID)
	assert.True(t, res.Channels[0].Saved)
	assert.Equal(t, 2, res.Channels[0].Placed)
	assert.Equal(t, 1, res.Channels[0].Version)

	require.NotNil(t, res.Channels[1].Error)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, res.Channels[1].Error.Code)
	assert.False(t, res.Channels[1].Saved)
	require.NotNil(t, res.Channels[2].Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, res.Channels[2].Error.Code)

	assert.Equal(t, 1, f.days.get("day-1").Version)
	assert.Equal(t, 0, f.days.get("day-2").Version)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestArrangementServiceBatchRejectsDuplicateChannels(t *testing.T) {
	f := newArrangeFixture(t, ArrangementConfig{}, []*models.ScheduleDay{seededDay()}, material("a", 40))

	_, err := f.arranger.AutoArrangeBatch(context.Background(), dto.BatchAutoArrangeRequest{
		Date: "2024-05-01",
		Channels: []dto.BatchChannelRequest{
			{ChannelID: "TVB1", ExpectedVersion: version(0)},
			{ChannelID: "TVB1", ExpectedVersion: version(0)},
		},
		Pool: poolOf("a"),
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
