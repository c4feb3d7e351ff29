package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
	"github.com/cai360/TVBsAdScheduler/pkg/export"
	"github.com/cai360/TVBsAdScheduler/pkg/storage"
)

type dayFreezer interface {
	scheduleDayStore
	MarkConverted(ctx context.Context, exec sqlx.ExtContext, dayID string, expectedVersion int, convertedAt time.Time) error
}

type broadcastLogStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.BroadcastLogRecord) error
	FindByDayID(ctx context.Context, dayID string) (*models.BroadcastLogRecord, error)
	SetStoragePath(ctx context.Context, dayID, path string) error
}

type logFileStore interface {
	Save(rel string, data []byte) (string, error)
	Read(rel string) ([]byte, error)
}

type downloadSigner interface {
	Generate(subject, relPath string) (string, time.Time, error)
	Parse(token string) (subject, relPath string, expiresAt time.Time, err error)
}

type deliveryScheduler interface {
	Schedule(ctx context.Context, payload DeliveryPayload) (*models.LogDelivery, error)
}

type tabularRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ConversionConfig carries the public download route used in signed URLs.
type ConversionConfig struct {
	DownloadBaseURL string
}

// LogConversionService freezes schedule days into broadcast LOG exports and
// serves those exports.
type LogConversionService struct {
	days      dayFreezer
	logs      broadcastLogStore
	tx        txProvider
	files     logFileStore
	signer    downloadSigner
	delivery  deliveryScheduler
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	csv       tabularRenderer
	pdf       tabularRenderer
	cfg       ConversionConfig
	access    *dayAccess
	now       func() time.Time
}

// NewLogConversionService wires conversion dependencies. files, signer and
// delivery are optional.
func NewLogConversionService(
	days dayFreezer,
	logs broadcastLogStore,
	tx txProvider,
	files logFileStore,
	signer downloadSigner,
	delivery deliveryScheduler,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ConversionConfig,
) *LogConversionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadBaseURL == "" {
		cfg.DownloadBaseURL = "/api/v1/downloads/logs"
	}
	return &LogConversionService{
		days:      days,
		logs:      logs,
		tx:        tx,
		files:     files,
		signer:    signer,
		delivery:  delivery,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		cfg:       cfg,
		access:    &dayAccess{days: days, tx: tx, metrics: metrics, logger: logger},
		now:       time.Now,
	}
}

// Convert freezes the day and returns its export. Converting a day that is
// already frozen returns the stored export unchanged.
func (s *LogConversionService) Convert(ctx context.Context, req dto.ConvertDayRequest) (*dto.ConversionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid convert payload")
	}
	date, err := parseDayRef(req.ChannelID, req.Date)
	if err != nil {
		return nil, err
	}
	day, err := s.access.load(ctx, req.ChannelID, date)
	if err != nil {
		return nil, err
	}
	if day.IsConverted() {
		return s.replay(ctx, day)
	}

	convertedAt := s.now().UTC().Truncate(time.Second)
	log := models.NewBroadcastLog(day, convertedAt, day.Version+1)
	payload, err := export.Canonical(log)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode broadcast log")
	}
	record := &models.BroadcastLogRecord{
		DayID:        day.ID,
		ChannelID:    day.ChannelID,
		ScheduleDate: day.ScheduleDate,
		Version:      log.Version,
		Payload:      payload,
		Checksum:     export.Checksum(payload),
		ConvertedAt:  convertedAt,
	}

	if err := s.freeze(ctx, day, record); err != nil {
		if errors.Is(err, models.ErrStaleVersion) {
			return s.afterLostRace(ctx, day)
		}
		s.metrics.RecordConversion("failed")
		return nil, err
	}
	s.metrics.RecordConversion("converted")
	s.cache.Invalidate(ctx, DayViewKey(day.ChannelID, day.ScheduleDate))
	s.logger.Info("schedule day converted",
		zap.String("day_id", day.ID),
		zap.String("channel_id", day.ChannelID),
		zap.String("date", log.ScheduleDate),
		zap.String("checksum", record.Checksum),
		zap.Int("version", record.Version),
	)

	result := s.toResult(record, false)
	s.publish(ctx, record, result)
	return result, nil
}

func (s *LogConversionService) freeze(ctx context.Context, day *models.ScheduleDay, record *models.BroadcastLogRecord) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.days.MarkConverted(ctx, tx, day.ID, day.Version, record.ConvertedAt); err != nil {
		if errors.Is(err, models.ErrStaleVersion) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to freeze schedule day")
	}
	if err = s.logs.Create(ctx, tx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store broadcast log")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit conversion")
	}
	return nil
}

// afterLostRace resolves a conversion whose conditional write lost: either a
// concurrent convert won (replay its export) or an edit moved the version.
func (s *LogConversionService) afterLostRace(ctx context.Context, day *models.ScheduleDay) (*dto.ConversionResult, error) {
	current, err := s.access.load(ctx, day.ChannelID, day.ScheduleDate)
	if err != nil {
		return nil, err
	}
	if current.IsConverted() {
		return s.replay(ctx, current)
	}
	s.metrics.RecordConversion("failed")
	return nil, s.access.conflict(current.Version, day.Version)
}

func (s *LogConversionService) replay(ctx context.Context, day *models.ScheduleDay) (*dto.ConversionResult, error) {
	record, err := s.record(ctx, day)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConversion("replayed")
	result := s.toResult(record, true)
	if record.StoragePath != "" {
		result.DownloadURL = s.downloadURL(record.StoragePath, day.ChannelID)
	}
	return result, nil
}

func (s *LogConversionService) record(ctx context.Context, day *models.ScheduleDay) (*models.BroadcastLogRecord, error) {
	record, err := s.logs.FindByDayID(ctx, day.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("converted day has no broadcast log", zap.String("day_id", day.ID))
			return nil, appErrors.WithDetails(appErrors.ErrDataIntegrity, map[string]interface{}{
				"day_id":     day.ID,
				"channel_id": day.ChannelID,
				"date":       models.DateKey(day.ScheduleDate),
			})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load broadcast log")
	}
	return record, nil
}

// publish stores the export file, signs a download link and queues delivery.
// The day is already frozen, so failures here are logged, not returned.
func (s *LogConversionService) publish(ctx context.Context, record *models.BroadcastLogRecord, result *dto.ConversionResult) {
	if s.files != nil {
		rel := storage.LogPath(record.ChannelID, models.DateKey(record.ScheduleDate), string(models.ExportFormatJSON))
		if _, err := s.files.Save(rel, record.Payload); err != nil {
			s.logger.Error("failed to store broadcast log file", zap.String("day_id", record.DayID), zap.String("path", rel), zap.Error(err))
		} else {
			if err := s.logs.SetStoragePath(ctx, record.DayID, rel); err != nil {
				s.logger.Warn("failed to record broadcast log path", zap.String("day_id", record.DayID), zap.Error(err))
			}
			record.StoragePath = rel
			result.DownloadURL = s.downloadURL(rel, record.ChannelID)
		}
	}
	if s.delivery != nil {
		delivery, err := s.delivery.Schedule(ctx, DeliveryPayload{
			DayID:       record.DayID,
			ChannelID:   record.ChannelID,
			Date:        models.DateKey(record.ScheduleDate),
			Checksum:    record.Checksum,
			Body:        record.Payload,
			DownloadURL: result.DownloadURL,
		})
		if err != nil {
			s.logger.Error("failed to schedule log delivery", zap.String("day_id", record.DayID), zap.Error(err))
		} else if delivery != nil {
			result.DeliveryID = delivery.ID
		}
	}
}

func (s *LogConversionService) downloadURL(rel, subject string) string {
	if s.signer == nil {
		return ""
	}
	token, _, err := s.signer.Generate(subject, rel)
	if err != nil {
		s.logger.Warn("failed to sign download url", zap.String("path", rel), zap.Error(err))
		return ""
	}
	return s.cfg.DownloadBaseURL + "?token=" + token
}

func (s *LogConversionService) toResult(record *models.BroadcastLogRecord, already bool) *dto.ConversionResult {
	return &dto.ConversionResult{
		DayID:            record.DayID,
		ChannelID:        record.ChannelID,
		Date:             models.DateKey(record.ScheduleDate),
		Version:          record.Version,
		Checksum:         record.Checksum,
		ConvertedAt:      record.ConvertedAt.UTC(),
		AlreadyConverted: already,
		Log:              json.RawMessage(record.Payload),
	}
}

// GetExport returns the stored canonical export of a converted day.
func (s *LogConversionService) GetExport(ctx context.Context, channelID, rawDate string) (*models.BroadcastLogRecord, error) {
	date, err := parseDayRef(channelID, rawDate)
	if err != nil {
		return nil, err
	}
	day, err := s.days.LoadDay(ctx, channelID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no schedule for channel %s on %s", channelID, rawDate))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule day")
	}
	if !day.IsConverted() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "schedule day has not been converted")
	}
	return s.record(ctx, day)
}

// Render produces the export as canonical JSON, CSV or PDF.
func (s *LogConversionService) Render(ctx context.Context, req dto.RenderLogRequest) (*dto.RenderedLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid render request")
	}
	record, err := s.GetExport(ctx, req.ChannelID, req.Date)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s-%s", record.ChannelID, models.DateKey(record.ScheduleDate))
	format := models.ExportFormat(req.Format)
	if format == models.ExportFormatJSON {
		return &dto.RenderedLog{FileName: base + ".json", ContentType: "application/json", Checksum: record.Checksum, Body: record.Payload}, nil
	}

	var log models.BroadcastLog
	if err := json.Unmarshal(record.Payload, &log); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataIntegrity.Code, appErrors.ErrDataIntegrity.Status, "stored broadcast log is unreadable")
	}
	dataset := logDataset(log, record.Checksum)
	rendered := &dto.RenderedLog{Checksum: record.Checksum}
	switch format {
	case models.ExportFormatCSV:
		rendered.Body, err = s.csv.Render(dataset)
		rendered.FileName, rendered.ContentType = base+".csv", "text/csv"
	case models.ExportFormatPDF:
		rendered.Body, err = s.pdf.Render(dataset)
		rendered.FileName, rendered.ContentType = base+".pdf", "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", req.Format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render broadcast log")
	}
	return rendered, nil
}

// Download resolves a signed token to the stored LOG file.
func (s *LogConversionService) Download(ctx context.Context, token string) (*dto.RenderedLog, error) {
	if s.signer == nil || s.files == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "log downloads are disabled")
	}
	_, rel, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	body, err := s.files.Read(rel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "log file not found")
	}
	return &dto.RenderedLog{
		FileName:    path.Base(rel),
		ContentType: "application/json",
		Checksum:    export.Checksum(body),
		Body:        body,
	}, nil
}

func logDataset(log models.BroadcastLog, checksum string) export.Dataset {
	data := export.Dataset{
		Title: fmt.Sprintf("Broadcast LOG %s %s", log.ChannelID, log.ScheduleDate),
		Meta: []export.MetaField{
			{Label: "Channel", Value: log.ChannelID},
			{Label: "Date", Value: log.ScheduleDate},
			{Label: "Converted At", Value: log.ConvertedAt},
			{Label: "Version", Value: strconv.Itoa(log.Version)},
			{Label: "Checksum", Value: checksum},
		},
		Headers: []string{"Program", "Break", "Position", "Material", "Kind", "Seconds", "Order", "Break Used/Capacity"},
	}
	for _, brk := range log.Breaks {
		usage := fmt.Sprintf("%d/%d", brk.UsedSeconds, brk.CapacitySeconds)
		if len(brk.Entries) == 0 {
			data.Rows = append(data.Rows, []string{brk.ProgramID, strconv.Itoa(brk.BreakSequence), "", "", "", "", "", usage})
			continue
		}
		for _, entry := range brk.Entries {
			data.Rows = append(data.Rows, []string{
				brk.ProgramID,
				strconv.Itoa(brk.BreakSequence),
				strconv.Itoa(entry.Position),
				entry.MaterialID,
				string(entry.Kind),
				strconv.Itoa(entry.Seconds),
				entry.OrderID,
				usage,
			})
		}
	}
	return data
}
