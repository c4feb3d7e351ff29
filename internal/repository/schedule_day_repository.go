package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

// ScheduleDayRepository is the break zone store: days, their zones and the
// placements inside them.
type ScheduleDayRepository struct {
	db *sqlx.DB
}

// NewScheduleDayRepository constructs repository.
func NewScheduleDayRepository(db *sqlx.DB) *ScheduleDayRepository {
	return &ScheduleDayRepository{db: db}
}

func (r *ScheduleDayRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

type placementRow struct {
	ID               string         `db:"id"`
	ZoneID           string         `db:"zone_id"`
	MaterialID       string         `db:"material_id"`
	Position         int            `db:"position"`
	Seconds          int            `db:"seconds"`
	OrderID          string         `db:"order_id"`
	Code             string         `db:"m_code"`
	Name             string         `db:"m_name"`
	DurationSeconds  int            `db:"m_duration_seconds"`
	Kind             string         `db:"m_kind"`
	RequiredPosition string         `db:"m_required_position"`
	ExclusivityGroup string         `db:"m_exclusivity_group"`
	Channels         pq.StringArray `db:"m_channels"`
	ValidFrom        *time.Time     `db:"m_valid_from"`
	ValidTo          *time.Time     `db:"m_valid_to"`
}

func (row placementRow) toPlacement() models.Placement {
	return models.Placement{
		ID:         row.ID,
		ZoneID:     row.ZoneID,
		MaterialID: row.MaterialID,
		Position:   row.Position,
		Seconds:    row.Seconds,
		OrderID:    row.OrderID,
		Material: &models.Material{
			ID:               row.MaterialID,
			Code:             row.Code,
			Name:             row.Name,
			DurationSeconds:  row.DurationSeconds,
			Kind:             models.MaterialKind(row.Kind),
			RequiredPosition: models.RequiredPosition(row.RequiredPosition),
			ExclusivityGroup: row.ExclusivityGroup,
			Channels:         row.Channels,
			ValidFrom:        row.ValidFrom,
			ValidTo:          row.ValidTo,
		},
	}
}

// LoadDay reads a day with its zones and placements. Returns sql.ErrNoRows
// when the channel has no schedule for the date.
func (r *ScheduleDayRepository) LoadDay(ctx context.Context, channelID string, date time.Time) (*models.ScheduleDay, error) {
	const dayQuery = `SELECT id, channel_id, channel_priority, schedule_date, status, version, converted_at, created_at, updated_at
FROM schedule_days WHERE channel_id = $1 AND schedule_date = $2`
	var day models.ScheduleDay
	if err := r.db.GetContext(ctx, &day, dayQuery, channelID, models.DateKey(date)); err != nil {
		return nil, err
	}

	const zoneQuery = `SELECT id, day_id, program_id, program_order, break_sequence, capacity_seconds
FROM break_zones WHERE day_id = $1 ORDER BY program_order, break_sequence, id`
	var zones []models.BreakZone
	if err := r.db.SelectContext(ctx, &zones, zoneQuery, day.ID); err != nil {
		return nil, fmt.Errorf("list break zones: %w", err)
	}

	const placementQuery = `SELECT p.id, p.zone_id, p.material_id, p.position, p.seconds, COALESCE(p.order_id, '') AS order_id,
m.code AS m_code, m.name AS m_name, m.duration_seconds AS m_duration_seconds, m.kind AS m_kind,
COALESCE(m.required_position, '') AS m_required_position, COALESCE(m.exclusivity_group, '') AS m_exclusivity_group,
m.channels AS m_channels, m.valid_from AS m_valid_from, m.valid_to AS m_valid_to
FROM placements p
JOIN break_zones z ON z.id = p.zone_id
JOIN materials m ON m.id = p.material_id
WHERE z.day_id = $1 ORDER BY p.zone_id, p.position`
	var rows []placementRow
	if err := r.db.SelectContext(ctx, &rows, placementQuery, day.ID); err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}

	byZone := make(map[string][]models.Placement, len(zones))
	for _, row := range rows {
		byZone[row.ZoneID] = append(byZone[row.ZoneID], row.toPlacement())
	}
	day.Zones = make([]*models.BreakZone, 0, len(zones))
	for i := range zones {
		zone := zones[i]
		zone.ChannelID = day.ChannelID
		zone.ScheduleDate = day.ScheduleDate
		zone.Placements = byZone[zone.ID]
		delete(byZone, zone.ID)
		day.Zones = append(day.Zones, &zone)
	}
	for zoneID := range byZone {
		return nil, fmt.Errorf("placements reference zone %s outside day %s", zoneID, day.ID)
	}
	return &day, nil
}

// BumpVersion advances an open day from expectedVersion to expectedVersion+1.
// Returns models.ErrStaleVersion when the day moved on or was converted.
func (r *ScheduleDayRepository) BumpVersion(ctx context.Context, exec sqlx.ExtContext, dayID string, expectedVersion int) error {
	const query = `UPDATE schedule_days SET version = version + 1, updated_at = $3
WHERE id = $1 AND version = $2 AND status = 'OPEN'`
	result, err := r.exec(exec).ExecContext(ctx, query, dayID, expectedVersion, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bump schedule day version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule day version rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrStaleVersion
	}
	return nil
}

// MarkConverted freezes an open day at expectedVersion.
func (r *ScheduleDayRepository) MarkConverted(ctx context.Context, exec sqlx.ExtContext, dayID string, expectedVersion int, convertedAt time.Time) error {
	const query = `UPDATE schedule_days SET status = 'CONVERTED', converted_at = $3, version = version + 1, updated_at = $3
WHERE id = $1 AND version = $2 AND status = 'OPEN'`
	result, err := r.exec(exec).ExecContext(ctx, query, dayID, expectedVersion, convertedAt)
	if err != nil {
		return fmt.Errorf("mark schedule day converted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule day convert rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrStaleVersion
	}
	return nil
}

// ReplacePlacements rewrites every placement of the day's zones.
func (r *ScheduleDayRepository) ReplacePlacements(ctx context.Context, exec sqlx.ExtContext, dayID string, zones []*models.BreakZone) error {
	target := r.exec(exec)

	const deleteQuery = `DELETE FROM placements WHERE zone_id IN (SELECT id FROM break_zones WHERE day_id = $1)`
	if _, err := target.ExecContext(ctx, deleteQuery, dayID); err != nil {
		return fmt.Errorf("clear placements: %w", err)
	}

	const insertQuery = `
INSERT INTO placements (id, zone_id, material_id, position, seconds, order_id)
VALUES (:id, :zone_id, :material_id, :position, :seconds, NULLIF(:order_id, ''))`
	for _, zone := range zones {
		for i := range zone.Placements {
			p := &zone.Placements[i]
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			p.ZoneID = zone.ID
			if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, p); err != nil {
				return fmt.Errorf("insert placement: %w", err)
			}
		}
	}
	return nil
}
