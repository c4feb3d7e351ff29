package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

type scheduleDayStore interface {
	LoadDay(ctx context.Context, channelID string, date time.Time) (*models.ScheduleDay, error)
	BumpVersion(ctx context.Context, exec sqlx.ExtContext, dayID string, expectedVersion int) error
	ReplacePlacements(ctx context.Context, exec sqlx.ExtContext, dayID string, zones []*models.BreakZone) error
}

type materialCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Material, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Material, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// dayAccess loads days for mutation and persists edited copies under the
// day's version counter. Shared by the edit, arrangement and conversion flows.
type dayAccess struct {
	days    scheduleDayStore
	tx      txProvider
	metrics *MetricsService
	logger  *zap.Logger
}

func parseDayRef(channelID, rawDate string) (time.Time, error) {
	date, err := models.ParseScheduleDate(rawDate)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	if channelID == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "channel id is required")
	}
	return date, nil
}

// load reads a day and verifies its structural integrity. Integrity failures
// are logged at error level for manual investigation.
func (a *dayAccess) load(ctx context.Context, channelID string, date time.Time) (*models.ScheduleDay, error) {
	day, err := a.days.LoadDay(ctx, channelID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no schedule for channel %s on %s", channelID, models.DateKey(date)))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule day")
	}
	if err := VerifyDayIntegrity(day); err != nil {
		a.logger.Error("schedule day failed integrity verification",
			zap.String("day_id", day.ID),
			zap.String("channel_id", channelID),
			zap.String("date", models.DateKey(date)),
			zap.Error(err),
		)
		return nil, err
	}
	return day, nil
}

// loadForEdit returns an open day whose version matches expectedVersion.
func (a *dayAccess) loadForEdit(ctx context.Context, channelID string, date time.Time, expectedVersion int) (*models.ScheduleDay, error) {
	day, err := a.load(ctx, channelID, date)
	if err != nil {
		return nil, err
	}
	if day.IsConverted() {
		return nil, violationError(models.DayConvertedViolation("", ""))
	}
	if day.Version != expectedVersion {
		return nil, a.conflict(day.Version, expectedVersion)
	}
	return day, nil
}

func (a *dayAccess) conflict(current, expected int) error {
	a.metrics.RecordVersionConflict()
	return appErrors.WithDetails(appErrors.ErrVersionConflict, map[string]interface{}{
		"current_version":  current,
		"expected_version": expected,
	})
}

// save persists edited as the successor of expectedVersion and returns the new
// version. Placements of the day are replaced in the same transaction.
func (a *dayAccess) save(ctx context.Context, edited *models.ScheduleDay, expectedVersion int) (int, error) {
	tx, err := a.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = a.days.BumpVersion(ctx, tx, edited.ID, expectedVersion); err != nil {
		if errors.Is(err, models.ErrStaleVersion) {
			return 0, a.staleError(ctx, edited, expectedVersion)
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock schedule day")
	}
	if err = a.days.ReplacePlacements(ctx, tx, edited.ID, edited.Zones); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store placements")
	}
	if err = tx.Commit(); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule day")
	}
	edited.Version = expectedVersion + 1
	return edited.Version, nil
}

// staleError explains a lost conditional write: the day was either frozen or
// edited by someone else since it was read.
func (a *dayAccess) staleError(ctx context.Context, edited *models.ScheduleDay, expectedVersion int) error {
	current, err := a.days.LoadDay(ctx, edited.ChannelID, edited.ScheduleDate)
	if err != nil {
		a.logger.Warn("reload after stale write failed", zap.String("day_id", edited.ID), zap.Error(err))
		return a.conflict(-1, expectedVersion)
	}
	if current.IsConverted() {
		return violationError(models.DayConvertedViolation("", ""))
	}
	return a.conflict(current.Version, expectedVersion)
}

// recordRejection counts rule violations carried by err.
func recordRejection(metrics *MetricsService, err error) {
	var v *models.Violation
	if errors.As(err, &v) {
		metrics.RecordViolation(string(v.Rule))
	}
}
