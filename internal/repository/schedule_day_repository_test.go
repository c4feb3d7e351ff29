package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var dayColumns = []string{"id", "channel_id", "channel_priority", "schedule_date", "status", "version", "converted_at", "created_at", "updated_at"}

func TestScheduleDayRepositoryLoadDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleDayRepository(db)

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_days WHERE channel_id = $1 AND schedule_date = $2")).
		WithArgs("TVB1", "2024-05-01").
		WillReturnRows(sqlmock.NewRows(dayColumns).AddRow("day-1", "TVB1", 1, date, "OPEN", 3, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM break_zones WHERE day_id = $1 ORDER BY program_order, break_sequence, id")).
		WithArgs("day-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "day_id", "program_id", "program_order", "break_sequence", "capacity_seconds"}).
			AddRow("zone-1", "day-1", "prog-1", 1, 1, 120).
			AddRow("zone-2", "day-1", "prog-1", 1, 2, 90))
	mock.ExpectQuery(regexp.QuoteMeta("FROM placements p")).
		WithArgs("day-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "zone_id", "material_id", "position", "seconds", "order_id",
			"m_code", "m_name", "m_duration_seconds", "m_kind", "m_required_position", "m_exclusivity_group",
			"m_channels", "m_valid_from", "m_valid_to",
		}).
			AddRow("pl-1", "zone-1", "mat-1", 1, 30, "ord-1", "C001", "Soda", 30, "C", "FIRST", "drinks", "{TVB1}", nil, nil).
			AddRow("pl-2", "zone-1", "mat-2", 2, 15, "", "P001", "Promo", 15, "9", "", "", "{}", nil, nil))

	day, err := repo.LoadDay(context.Background(), "TVB1", date)
	require.NoError(t, err)
	assert.Equal(t, 3, day.Version)
	require.Len(t, day.Zones, 2)
	assert.Equal(t, "zone-1", day.Zones[0].ID)
	assert.Equal(t, "TVB1", day.Zones[0].ChannelID)
	require.Len(t, day.Zones[0].Placements, 2)
	assert.Equal(t, 45, day.Zones[0].UsedSeconds())
	assert.Equal(t, models.RequiredPositionFirst, day.Zones[0].Placements[0].Material.RequiredPosition)
	assert.True(t, day.Zones[0].Placements[0].Material.AllowsChannel("TVB1"))
	assert.False(t, day.Zones[0].Placements[0].Material.AllowsChannel("J2"))
	assert.Empty(t, day.Zones[1].Placements)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDayRepositoryLoadDayNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleDayRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_days WHERE channel_id = $1")).
		WithArgs("TVB1", "2024-05-01").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LoadDay(context.Background(), "TVB1", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDayRepositoryBumpVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleDayRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_days SET version = version + 1")).
		WithArgs("day-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.BumpVersion(context.Background(), nil, "day-1", 3))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_days SET version = version + 1")).
		WithArgs("day-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.BumpVersion(context.Background(), nil, "day-1", 3)
	assert.ErrorIs(t, err, models.ErrStaleVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDayRepositoryMarkConverted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleDayRepository(db)

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_days SET status = 'CONVERTED'")).
		WithArgs("day-1", 4, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkConverted(context.Background(), nil, "day-1", 4, at)
	assert.ErrorIs(t, err, models.ErrStaleVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDayRepositoryReplacePlacementsInTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleDayRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM placements WHERE zone_id IN (SELECT id FROM break_zones WHERE day_id = $1)")).
		WithArgs("day-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO placements")).
		WithArgs("pl-1", "zone-1", "mat-1", 1, 30, "ord-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO placements")).
		WithArgs(sqlmock.AnyArg(), "zone-1", "mat-2", 2, 15, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	zones := []*models.BreakZone{{
		ID:              "zone-1",
		CapacitySeconds: 60,
		Placements: []models.Placement{
			{ID: "pl-1", MaterialID: "mat-1", Position: 1, Seconds: 30, OrderID: "ord-1"},
			{MaterialID: "mat-2", Position: 2, Seconds: 15},
		},
	}}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ReplacePlacements(context.Background(), tx, "day-1", zones))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, zones[0].Placements[1].ID)
	assert.Equal(t, "zone-1", zones[0].Placements[1].ZoneID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
