package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

var materialRowColumns = []string{"id", "code", "name", "duration_seconds", "kind", "required_position", "exclusivity_group", "channels", "valid_from", "valid_to", "created_at", "updated_at"}

func TestMaterialRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaterialRepository(db)

	now := time.Now()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM materials WHERE id = ANY($1) ORDER BY id")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(materialRowColumns).
			AddRow("mat-1", "C001", "Soda", 30, "C", "LAST", "drinks", "{TVB1,J2}", from, nil, now, now))

	materials, err := repo.ListByIDs(context.Background(), []string{"mat-1", "mat-x"})
	require.NoError(t, err)
	require.Len(t, materials, 1)
	assert.Equal(t, models.RequiredPositionLast, materials[0].RequiredPosition)
	assert.ElementsMatch(t, []string{"TVB1", "J2"}, []string(materials[0].Channels))
	require.NotNil(t, materials[0].ValidFrom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepositoryListByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaterialRepository(db)

	materials, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, materials)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaterialRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM materials WHERE (cardinality(channels) = 0 OR $1 = ANY(channels)) AND kind = $2")).
		WithArgs("TVB1", "C").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY code, id LIMIT $3 OFFSET $4")).
		WithArgs("TVB1", "C", 10, 10).
		WillReturnRows(sqlmock.NewRows(materialRowColumns).
			AddRow("mat-1", "C001", "Soda", 30, "C", "", "", "{}", nil, nil, now, now))

	materials, total, err := repo.List(context.Background(), models.MaterialFilter{ChannelID: "TVB1", Kind: models.MaterialKindCommercial, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, materials, 1)
	assert.True(t, materials[0].AllowsChannel("anything"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
