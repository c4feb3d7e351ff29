package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

func TestLogDeliveryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogDeliveryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO log_deliveries")).
		WithArgs(sqlmock.AnyArg(), "day-1", "abc", sqlmock.AnyArg(), string(models.DeliveryStatusQueued), 0, nil, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	delivery := &models.LogDelivery{DayID: "day-1", Checksum: "abc", Target: models.DeliveryTarget{Transport: "nats"}}
	require.NoError(t, repo.Create(context.Background(), delivery))
	assert.NotEmpty(t, delivery.ID)
	assert.Equal(t, models.DeliveryStatusQueued, delivery.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogDeliveryRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogDeliveryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE log_deliveries SET status = $2, attempts = $3")).
		WithArgs("del-1", models.DeliveryStatusDelivered, 2, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	target := models.DeliveryTarget{Transport: "nats", Destination: "logs.TVB1"}
	require.NoError(t, repo.UpdateStatus(context.Background(), "del-1", models.DeliveryStatusDelivered, 2, nil, &target))

	msg := "broker down"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE log_deliveries SET status = $2")).
		WithArgs("missing", models.DeliveryStatusFailed, 3, &msg, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), "missing", models.DeliveryStatusFailed, 3, &msg, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
