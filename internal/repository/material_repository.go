package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

const materialColumns = `id, code, name, duration_seconds, kind, COALESCE(required_position, '') AS required_position,
COALESCE(exclusivity_group, '') AS exclusivity_group, channels, valid_from, valid_to, created_at, updated_at`

// MaterialRepository reads the material catalogue.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository constructs repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindByID fetches a material.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		return nil, err
	}
	return &material, nil
}

// ListByIDs fetches the materials with the given ids. Unknown ids are skipped.
func (r *MaterialRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Material, error) {
	if len(ids) == 0 {
		return []models.Material{}, nil
	}
	query := `SELECT ` + materialColumns + ` FROM materials WHERE id = ANY($1) ORDER BY id`
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list materials by ids: %w", err)
	}
	return materials, nil
}

// List returns catalogue entries matching the filter along with the total count.
func (r *MaterialRepository) List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.ChannelID != "" {
		args = append(args, filter.ChannelID)
		conditions = append(conditions, fmt.Sprintf("(cardinality(channels) = 0 OR $%d = ANY(channels))", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.ValidOn != nil {
		args = append(args, models.DateKey(*filter.ValidOn))
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(valid_from IS NULL OR valid_from <= $%d) AND (valid_to IS NULL OR valid_to >= $%d)", idx, idx))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(name) LIKE $%d)", idx, idx))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM materials"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count materials: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM materials%s ORDER BY code, id LIMIT $%d OFFSET $%d", materialColumns, where, len(args)-1, len(args))
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list materials: %w", err)
	}
	return materials, total, nil
}
