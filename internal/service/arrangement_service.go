package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

// ArrangementConfig bounds auto-arrange requests.
type ArrangementConfig struct {
	MaxPoolSize  int
	BatchWorkers int
}

// ArrangementService runs the arrangement engine over stored days and
// persists the outcome.
type ArrangementService struct {
	access    *dayAccess
	materials materialCatalog
	engine    *ArrangementEngine
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ArrangementConfig
	pool      pond.ResultPool[*channelRun]
}

type channelRun struct {
	index   int
	day     *models.ScheduleDay
	version int
	err     error
}

// NewArrangementService wires the auto-arrange orchestration.
func NewArrangementService(
	days scheduleDayStore,
	materials materialCatalog,
	tx txProvider,
	engine *ArrangementEngine,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ArrangementConfig,
) *ArrangementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewArrangementEngine(nil)
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 500
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 4
	}
	return &ArrangementService{
		access:    &dayAccess{days: days, tx: tx, metrics: metrics, logger: logger},
		materials: materials,
		engine:    engine,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		pool:      pond.NewResultPool[*channelRun](cfg.BatchWorkers),
	}
}

// Close stops the batch worker pool.
func (s *ArrangementService) Close() {
	s.pool.StopAndWait()
}

// AutoArrange places a pool into one channel's day. Converted days yield an
// all-unplaced result; DryRun skips persistence.
func (s *ArrangementService) AutoArrange(ctx context.Context, req dto.AutoArrangeRequest) (*dto.AutoArrangeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto-arrange payload")
	}
	if len(req.Pool) > s.cfg.MaxPoolSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("pool holds %d entries, limit is %d", len(req.Pool), s.cfg.MaxPoolSize))
	}
	date, err := parseDayRef(req.ChannelID, req.Date)
	if err != nil {
		return nil, err
	}
	day, err := s.access.load(ctx, req.ChannelID, date)
	if err != nil {
		return nil, err
	}
	if !day.IsConverted() && day.Version != *req.ExpectedVersion {
		return nil, s.access.conflict(day.Version, *req.ExpectedVersion)
	}
	pool, err := s.resolvePool(ctx, req.Pool)
	if err != nil {
		return nil, err
	}

	result := s.engine.Arrange([]*models.ScheduleDay{day}, pool)
	s.observe(result)

	version := day.Version
	if !req.DryRun && len(result.Placed) > 0 {
		arranged := result.Days[0]
		if version, err = s.access.save(ctx, arranged, *req.ExpectedVersion); err != nil {
			return nil, err
		}
		s.cache.Invalidate(ctx, DayViewKey(arranged.ChannelID, arranged.ScheduleDate))
	}
	s.logger.Info("auto-arrange completed",
		zap.String("channel_id", req.ChannelID),
		zap.String("date", req.Date),
		zap.Int("placed", len(result.Placed)),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Bool("dry_run", req.DryRun),
		zap.Duration("elapsed", result.Elapsed),
	)
	return &dto.AutoArrangeResponse{
		ChannelID: req.ChannelID,
		Date:      req.Date,
		Version:   version,
		DryRun:    req.DryRun,
		Placed:    toPlacedViews(result.Placed),
		Unplaced:  toUnplacedViews(result.Unplaced),
		ElapsedMS: result.Elapsed.Milliseconds(),
	}, nil
}

// AutoArrangeBatch places one shared pool across several channels of a date.
// Days are loaded and saved concurrently; each channel succeeds or fails on
// its own version check, and failed channels are reported without aborting
// the others.
func (s *ArrangementService) AutoArrangeBatch(ctx context.Context, req dto.BatchAutoArrangeRequest) (*dto.BatchAutoArrangeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch auto-arrange payload")
	}
	if len(req.Pool) > s.cfg.MaxPoolSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("pool holds %d entries, limit is %d", len(req.Pool), s.cfg.MaxPoolSize))
	}
	seen := make(map[string]struct{}, len(req.Channels))
	for _, ch := range req.Channels {
		if _, dup := seen[ch.ChannelID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("channel %s listed twice", ch.ChannelID))
		}
		seen[ch.ChannelID] = struct{}{}
	}
	date, err := models.ParseScheduleDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	pool, err := s.resolvePool(ctx, req.Pool)
	if err != nil {
		return nil, err
	}

	loads := make([]pond.Result[*channelRun], len(req.Channels))
	for i, ch := range req.Channels {
		i, ch := i, ch
		loads[i] = s.pool.Submit(func() *channelRun {
			run := &channelRun{index: i}
			day, err := s.access.load(ctx, ch.ChannelID, date)
			switch {
			case err != nil:
				run.err = err
			case day.IsConverted():
				run.err = violationError(models.DayConvertedViolation("", ""))
			case day.Version != *ch.ExpectedVersion:
				run.err = s.access.conflict(day.Version, *ch.ExpectedVersion)
			default:
				run.day = day
				run.version = day.Version
			}
			return run
		})
	}

	results := make([]dto.BatchChannelResult, len(req.Channels))
	days := make([]*models.ScheduleDay, 0, len(req.Channels))
	dayIndex := make(map[string]int, len(req.Channels))
	for i, task := range loads {
		results[i].ChannelID = req.Channels[i].ChannelID
		run, err := task.Wait()
		if err == nil {
			err = run.err
		}
		if err != nil {
			results[i].Error = batchError(err)
			continue
		}
		results[i].Version = run.version
		dayIndex[run.day.ID] = i
		days = append(days, run.day)
	}

	result := s.engine.Arrange(days, pool)
	s.observe(result)
	for _, placed := range result.Placed {
		if idx, ok := dayIndex[placed.DayID]; ok {
			results[idx].Placed++
		}
	}

	if !req.DryRun {
		saved := 0
		saves := make([]pond.Result[*channelRun], 0, len(result.Days))
		for _, arranged := range result.Days {
			idx := dayIndex[arranged.ID]
			if results[idx].Placed == 0 {
				continue
			}
			arranged, expected := arranged, *req.Channels[idx].ExpectedVersion
			saves = append(saves, s.pool.Submit(func() *channelRun {
				version, err := s.access.save(ctx, arranged, expected)
				return &channelRun{index: idx, version: version, err: err}
			}))
		}
		for _, task := range saves {
			run, err := task.Wait()
			if err != nil {
				s.logger.Error("batch save task failed", zap.Error(err))
				continue
			}
			if run.err != nil {
				results[run.index].Error = batchError(run.err)
				continue
			}
			results[run.index].Version = run.version
			results[run.index].Saved = true
			saved++
		}
		if saved > 0 {
			s.cache.InvalidateDate(ctx, date)
		}
	}

	s.logger.Info("batch auto-arrange completed",
		zap.String("date", req.Date),
		zap.Int("channels", len(req.Channels)),
		zap.Int("placed", len(result.Placed)),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Bool("dry_run", req.DryRun),
	)
	return &dto.BatchAutoArrangeResponse{
		Date:      req.Date,
		DryRun:    req.DryRun,
		Placed:    toPlacedViews(result.Placed),
		Unplaced:  toUnplacedViews(result.Unplaced),
		Channels:  results,
		ElapsedMS: result.Elapsed.Milliseconds(),
	}, nil
}

// resolvePool turns request entries into engine input. Catalogue references
// are fetched in one query; unknown ids fail the whole request.
func (s *ArrangementService) resolvePool(ctx context.Context, entries []dto.PoolEntryRequest) ([]models.PoolEntry, error) {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Material == nil && entry.MaterialID != "" {
			ids = append(ids, entry.MaterialID)
		}
	}
	catalogue := map[string]models.Material{}
	if len(ids) > 0 {
		materials, err := s.materials.ListByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pool materials")
		}
		for _, m := range materials {
			catalogue[m.ID] = m
		}
	}

	pool := make([]models.PoolEntry, 0, len(entries))
	var missing []string
	for _, entry := range entries {
		if entry.Material != nil {
			pool = append(pool, models.PoolEntry{Material: inlineMaterial(*entry.Material), OrderID: entry.OrderID})
			continue
		}
		m, ok := catalogue[entry.MaterialID]
		if !ok {
			missing = append(missing, entry.MaterialID)
			continue
		}
		pool = append(pool, models.PoolEntry{Material: m, OrderID: entry.OrderID})
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "pool references unknown materials: "+strings.Join(missing, ", ")),
			map[string]interface{}{"missing_material_ids": missing},
		)
	}
	return pool, nil
}

func inlineMaterial(in dto.InlineMaterialInput) models.Material {
	return models.Material{
		ID:               in.ID,
		Code:             in.Code,
		Name:             in.Name,
		DurationSeconds:  in.DurationSeconds,
		Kind:             models.MaterialKind(in.Kind),
		RequiredPosition: models.RequiredPosition(in.RequiredPosition),
		ExclusivityGroup: in.ExclusivityGroup,
		Channels:         in.Channels,
		ValidFrom:        in.ValidFrom,
		ValidTo:          in.ValidTo,
	}
}

func (s *ArrangementService) observe(result ArrangementResult) {
	s.metrics.ObserveArrangement(len(result.Placed), len(result.Unplaced), result.Elapsed)
	for _, u := range result.Unplaced {
		if u.Reason != nil {
			s.metrics.RecordViolation(string(u.Reason.Rule))
		}
	}
}

func batchError(err error) *dto.BatchError {
	appErr := appErrors.FromError(err)
	return &dto.BatchError{Code: appErr.Code, Message: appErr.Message}
}
