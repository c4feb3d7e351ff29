package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

// LogEditService applies manual edits (insert, remove, move, reset) to one
// schedule day at a time. Each edit runs against a copy of the loaded day and
// is persisted only when fully valid, guarded by the day's version counter.
type LogEditService struct {
	access    *dayAccess
	materials materialCatalog
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	newID     func() string
}

// NewLogEditService wires the edit transaction manager.
func NewLogEditService(
	days scheduleDayStore,
	materials materialCatalog,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *LogEditService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEditService{
		access:    &dayAccess{days: days, tx: tx, metrics: metrics, logger: logger},
		materials: materials,
		cache:     cache,
		validator: validate,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Get returns the arrangement view of a day, served from cache when possible.
func (s *LogEditService) Get(ctx context.Context, channelID, rawDate string) (*dto.ArrangementView, error) {
	date, err := parseDayRef(channelID, rawDate)
	if err != nil {
		return nil, err
	}
	key := DayViewKey(channelID, date)
	var cached dto.ArrangementView
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	day, err := s.access.load(ctx, channelID, date)
	if err != nil {
		return nil, err
	}
	view := toArrangementView(day)
	s.cache.Set(ctx, key, view, 0)
	return &view, nil
}

// Insert places a catalogue material at the requested position.
func (s *LogEditService) Insert(ctx context.Context, req dto.InsertPlacementRequest) (*dto.PlacementResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid insert payload")
	}
	date, err := parseDayRef(req.ChannelID, req.Date)
	if err != nil {
		return nil, err
	}
	day, err := s.access.loadForEdit(ctx, req.ChannelID, date, *req.ExpectedVersion)
	if err != nil {
		recordRejection(s.access.metrics, err)
		return nil, err
	}
	material, err := s.material(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}

	working := day.Clone()
	placement, err := InsertPlacement(working, req.ZoneID, *material, req.Position, req.OrderID, s.newID())
	if err != nil {
		recordRejection(s.access.metrics, err)
		return nil, err
	}
	if _, err := s.access.save(ctx, working, *req.ExpectedVersion); err != nil {
		return nil, err
	}
	s.invalidate(ctx, working)
	s.logger.Info("placement inserted",
		zap.String("day_id", working.ID),
		zap.String("zone_id", req.ZoneID),
		zap.String("material_id", material.ID),
		zap.Int("position", placement.Position),
		zap.Int("version", working.Version),
	)
	return &dto.PlacementResult{
		Placement: toPlacementView(*placement),
		ZoneID:    req.ZoneID,
		Day:       toArrangementView(working),
	}, nil
}

// Remove deletes a placement and compacts its zone.
func (s *LogEditService) Remove(ctx context.Context, req dto.RemovePlacementRequest) (*dto.ArrangementView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remove payload")
	}
	date, err := parseDayRef(req.ChannelID, req.Date)
	if err != nil {
		return nil, err
	}
	day, err := s.access.loadForEdit(ctx, req.ChannelID, date, *req.ExpectedVersion)
	if err != nil {
		recordRejection(s.access.metrics, err)
		return nil, err
	}

	working := day.Clone()
	if _, err := RemovePlacement(working, req.PlacementID); err != nil {
		return nil, err
	}
	if _, err := s.access.save(ctx, working, *req.ExpectedVersion); err != nil {
		return nil, err
	}
	s.invalidate(ctx, working)
	view := toArrangementView(working)
	return &view, nil
}

// Move relocates a placement. The target position refers to the zone after
// the placement has been taken out; a rejected insert leaves the day unchanged.
func (s *LogEditService) Move(ctx context.Context, req dto.MovePlacementRequest) (*dto.PlacementResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	date, err := parseDayRef(req.ChannelID, req.Date)
	if err != nil {
		return nil, err
	}
	day, err := s.access.loadForEdit(ctx, req.ChannelID, date, *req.ExpectedVersion)
	if err != nil {
		recordRejection(s.access.metrics, err)
		return nil, err
	}

	working := day.Clone()
	moved, err := MovePlacement(working, req.PlacementID, req.TargetZoneID, req.Position, s.newID())
	if err != nil {
		recordRejection(s.access.metrics, err)
		return nil, err
	}
	if _, err := s.access.save(ctx, working, *req.ExpectedVersion); err != nil {
		return nil, err
	}
	s.invalidate(ctx, working)
	return &dto.PlacementResult{
		Placement: toPlacementView(*moved),
		ZoneID:    req.TargetZoneID,
		Day:       toArrangementView(working),
	}, nil
}

// Reset clears every placement of an open day.
func (s *LogEditService) Reset(ctx context.Context, req dto.ResetDayRequest) (*dto.ArrangementView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	date, err := parseDayRef(req.ChannelID, req.Date)
	if err != nil {
		return nil, err
	}
	day, err := s.access.loadForEdit(ctx, req.ChannelID, date, *req.ExpectedVersion)
	if err != nil {
		recordRejection(s.access.metrics, err)
		return nil, err
	}

	working := day.Clone()
	removed := working.ClearPlacements()
	if _, err := s.access.save(ctx, working, *req.ExpectedVersion); err != nil {
		return nil, err
	}
	s.invalidate(ctx, working)
	s.logger.Info("schedule day reset", zap.String("day_id", working.ID), zap.Int("removed", removed))
	view := toArrangementView(working)
	return &view, nil
}

// Check re-validates every stored placement against the current catalogue.
// Each placement is tested as if it were inserted last into its zone at its
// current position. Nothing is modified.
func (s *LogEditService) Check(ctx context.Context, channelID, rawDate string) (*dto.CheckReport, error) {
	date, err := parseDayRef(channelID, rawDate)
	if err != nil {
		return nil, err
	}
	day, err := s.access.load(ctx, channelID, date)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	seen := map[string]struct{}{}
	for _, zone := range day.Zones {
		for _, p := range zone.Placements {
			if _, ok := seen[p.MaterialID]; !ok {
				seen[p.MaterialID] = struct{}{}
				ids = append(ids, p.MaterialID)
			}
		}
	}
	catalogue, err := s.materials.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load materials")
	}
	byID := make(map[string]models.Material, len(catalogue))
	for _, m := range catalogue {
		byID[m.ID] = m
	}

	ordered := day.Clone()
	ordered.SortZones()
	report := &dto.CheckReport{DayID: day.ID, Version: day.Version, Violations: []dto.CheckViolation{}}
	for _, zone := range ordered.Zones {
		for i, p := range zone.Placements {
			material, ok := byID[p.MaterialID]
			var v *models.Violation
			if !ok {
				v = models.IneligibleViolation(zone.ID, p.MaterialID, "material no longer in catalogue")
			} else {
				others := zone.Clone()
				_, _ = others.RemoveAt(i)
				v = ValidatePlacement(nil, others, material, p.Position)
			}
			if v == nil {
				continue
			}
			report.Violations = append(report.Violations, dto.CheckViolation{
				PlacementID: p.ID,
				ZoneID:      zone.ID,
				MaterialID:  p.MaterialID,
				Position:    p.Position,
				Rule:        string(v.Rule),
				Message:     v.Message,
				Details:     v.Details,
			})
		}
	}
	return report, nil
}

func (s *LogEditService) material(ctx context.Context, id string) (*models.Material, error) {
	material, err := s.materials.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("material %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	return material, nil
}

func (s *LogEditService) invalidate(ctx context.Context, day *models.ScheduleDay) {
	s.cache.Invalidate(ctx, DayViewKey(day.ChannelID, day.ScheduleDate))
}

