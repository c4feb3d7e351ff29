package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

// LogDeliveryRepository tracks hand-offs of converted LOGs to playout.
type LogDeliveryRepository struct {
	db *sqlx.DB
}

// NewLogDeliveryRepository constructs repository.
func NewLogDeliveryRepository(db *sqlx.DB) *LogDeliveryRepository {
	return &LogDeliveryRepository{db: db}
}

// Create inserts a delivery in QUEUED state.
func (r *LogDeliveryRepository) Create(ctx context.Context, delivery *models.LogDelivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	if delivery.Status == "" {
		delivery.Status = models.DeliveryStatusQueued
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO log_deliveries (id, day_id, checksum, target, status, attempts, error_message, created_at, delivered_at)
VALUES (:id, :day_id, :checksum, :target, :status, :attempts, :error_message, :created_at, :delivered_at)`
	if _, err := r.db.NamedExecContext(ctx, query, delivery); err != nil {
		return fmt.Errorf("insert log delivery: %w", err)
	}
	return nil
}

// FindByID loads a delivery.
func (r *LogDeliveryRepository) FindByID(ctx context.Context, id string) (*models.LogDelivery, error) {
	const query = `SELECT id, day_id, checksum, target, status, attempts, error_message, created_at, delivered_at FROM log_deliveries WHERE id = $1`
	var delivery models.LogDelivery
	if err := r.db.GetContext(ctx, &delivery, query, id); err != nil {
		return nil, err
	}
	return &delivery, nil
}

// UpdateStatus records the outcome of a delivery attempt.
func (r *LogDeliveryRepository) UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus, attempts int, errMsg *string, target *models.DeliveryTarget) error {
	var deliveredAt *time.Time
	if status == models.DeliveryStatusDelivered {
		now := time.Now().UTC()
		deliveredAt = &now
	}
	query := `UPDATE log_deliveries SET status = $2, attempts = $3, error_message = $4, delivered_at = COALESCE($5, delivered_at) WHERE id = $1`
	args := []interface{}{id, status, attempts, errMsg, deliveredAt}
	if target != nil {
		query = `UPDATE log_deliveries SET status = $2, attempts = $3, error_message = $4, delivered_at = COALESCE($5, delivered_at), target = $6 WHERE id = $1`
		args = append(args, *target)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update log delivery: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("log delivery rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
