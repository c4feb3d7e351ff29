package service

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

type materialLister interface {
	List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, int, error)
}

// MaterialService offers read-only catalogue lookups.
type MaterialService struct {
	repo      materialLister
	validator *validator.Validate
}

// NewMaterialService constructs the service.
func NewMaterialService(repo materialLister, validate *validator.Validate) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	return &MaterialService{repo: repo, validator: validate}
}

// List returns a page of materials matching the query.
func (s *MaterialService) List(ctx context.Context, query dto.MaterialQuery) ([]models.Material, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material query")
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.PageSize == 0 {
		query.PageSize = 50
	}
	filter := models.MaterialFilter{
		ChannelID: query.ChannelID,
		Kind:      models.MaterialKind(query.Kind),
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if query.Date != "" {
		date, err := models.ParseScheduleDate(query.Date)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
		}
		filter.ValidOn = &date
	}

	materials, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	if materials == nil {
		materials = []models.Material{}
	}
	return materials, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}
