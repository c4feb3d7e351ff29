package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

// BroadcastLogRepository persists frozen LOG exports. Rows are written once.
type BroadcastLogRepository struct {
	db *sqlx.DB
}

// NewBroadcastLogRepository constructs repository.
func NewBroadcastLogRepository(db *sqlx.DB) *BroadcastLogRepository {
	return &BroadcastLogRepository{db: db}
}

func (r *BroadcastLogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create stores the export of a freshly converted day.
func (r *BroadcastLogRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.BroadcastLogRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO broadcast_logs (day_id, channel_id, schedule_date, version, payload, checksum, storage_path, converted_at, created_at)
VALUES (:day_id, :channel_id, :schedule_date, :version, :payload, :checksum, NULLIF(:storage_path, ''), :converted_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, record); err != nil {
		return fmt.Errorf("insert broadcast log: %w", err)
	}
	return nil
}

// FindByDayID loads the export of a converted day.
func (r *BroadcastLogRepository) FindByDayID(ctx context.Context, dayID string) (*models.BroadcastLogRecord, error) {
	const query = `SELECT day_id, channel_id, schedule_date, version, payload, checksum, COALESCE(storage_path, '') AS storage_path, converted_at, created_at
FROM broadcast_logs WHERE day_id = $1`
	var record models.BroadcastLogRecord
	if err := r.db.GetContext(ctx, &record, query, dayID); err != nil {
		return nil, err
	}
	return &record, nil
}

// SetStoragePath records where the export file was written. The path is only
// set once.
func (r *BroadcastLogRepository) SetStoragePath(ctx context.Context, dayID, path string) error {
	const query = `UPDATE broadcast_logs SET storage_path = $2 WHERE day_id = $1 AND (storage_path IS NULL OR storage_path = $2)`
	result, err := r.db.ExecContext(ctx, query, dayID, path)
	if err != nil {
		return fmt.Errorf("set broadcast log storage path: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("broadcast log storage rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
