package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
	"github.com/cai360/TVBsAdScheduler/pkg/jobs"
	"github.com/cai360/TVBsAdScheduler/pkg/transmission"
)

type logDeliveryStore interface {
	Create(ctx context.Context, delivery *models.LogDelivery) error
	FindByID(ctx context.Context, id string) (*models.LogDelivery, error)
	UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus, attempts int, errMsg *string, target *models.DeliveryTarget) error
}

// DeliveryPayload is the queued hand-off of one converted LOG.
type DeliveryPayload struct {
	DeliveryID  string
	DayID       string
	ChannelID   string
	Date        string
	Checksum    string
	Body        []byte
	DownloadURL string
}

// DeliveryConfig tunes the background delivery queue.
type DeliveryConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// LogDeliveryService publishes converted LOGs to playout automation in the
// background and records each attempt.
type LogDeliveryService struct {
	store     logDeliveryStore
	publisher transmission.Publisher
	queue     *jobs.Queue[DeliveryPayload]
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewLogDeliveryService builds the service and its queue. Call Start before
// scheduling deliveries.
func NewLogDeliveryService(store logDeliveryStore, publisher transmission.Publisher, metrics *MetricsService, logger *zap.Logger, cfg DeliveryConfig) *LogDeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = transmission.NopPublisher{}
	}
	s := &LogDeliveryService{store: store, publisher: publisher, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue[DeliveryPayload]("log-delivery", s.handle, jobs.QueueConfig[DeliveryPayload]{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp:   s.giveUp,
	})
	return s
}

// Start launches the delivery workers.
func (s *LogDeliveryService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *LogDeliveryService) Stop() {
	s.queue.Stop()
}

// Enabled reports whether a real transport is configured.
func (s *LogDeliveryService) Enabled() bool {
	return s != nil && s.publisher.Name() != transmission.TransportNone
}

// Schedule records a QUEUED delivery and enqueues it. Returns nil when
// delivery is disabled.
func (s *LogDeliveryService) Schedule(ctx context.Context, payload DeliveryPayload) (*models.LogDelivery, error) {
	if !s.Enabled() {
		return nil, nil
	}
	msg := s.message(payload)
	delivery := &models.LogDelivery{
		DayID:    payload.DayID,
		Checksum: payload.Checksum,
		Target: models.DeliveryTarget{
			Transport:   s.publisher.Name(),
			Destination: s.publisher.Destination(msg),
			DownloadURL: payload.DownloadURL,
		},
		Status: models.DeliveryStatusQueued,
	}
	if err := s.store.Create(ctx, delivery); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record log delivery")
	}
	payload.DeliveryID = delivery.ID
	if err := s.queue.Enqueue(jobs.Job[DeliveryPayload]{ID: delivery.ID, Payload: payload}); err != nil {
		errMsg := err.Error()
		_ = s.store.UpdateStatus(ctx, delivery.ID, models.DeliveryStatusFailed, 0, &errMsg, nil)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue log delivery")
	}
	return delivery, nil
}

// Get returns a delivery record.
func (s *LogDeliveryService) Get(ctx context.Context, id string) (*models.LogDelivery, error) {
	delivery, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("delivery %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery")
	}
	return delivery, nil
}

func (s *LogDeliveryService) message(p DeliveryPayload) transmission.Message {
	return transmission.Message{ChannelID: p.ChannelID, ScheduleDate: p.Date, Checksum: p.Checksum, Body: p.Body}
}

func (s *LogDeliveryService) handle(ctx context.Context, job jobs.Job[DeliveryPayload]) error {
	msg := s.message(job.Payload)
	attempts := job.Attempt + 1
	if err := s.publisher.Publish(ctx, msg); err != nil {
		errMsg := err.Error()
		if uerr := s.store.UpdateStatus(ctx, job.ID, models.DeliveryStatusQueued, attempts, &errMsg, nil); uerr != nil {
			s.logger.Warn("failed to record delivery attempt", zap.String("delivery_id", job.ID), zap.Error(uerr))
		}
		return err
	}
	target := models.DeliveryTarget{
		Transport:   s.publisher.Name(),
		Destination: s.publisher.Destination(msg),
		DownloadURL: job.Payload.DownloadURL,
	}
	if err := s.store.UpdateStatus(ctx, job.ID, models.DeliveryStatusDelivered, attempts, nil, &target); err != nil {
		s.logger.Warn("failed to record delivery", zap.String("delivery_id", job.ID), zap.Error(err))
	}
	s.metrics.RecordDelivery(target.Transport, string(models.DeliveryStatusDelivered))
	s.logger.Info("log delivered",
		zap.String("delivery_id", job.ID),
		zap.String("channel_id", msg.ChannelID),
		zap.String("date", msg.ScheduleDate),
		zap.String("destination", target.Destination),
	)
	return nil
}

func (s *LogDeliveryService) giveUp(job jobs.Job[DeliveryPayload], err error) {
	errMsg := err.Error()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if uerr := s.store.UpdateStatus(ctx, job.ID, models.DeliveryStatusFailed, job.Attempt, &errMsg, nil); uerr != nil {
		s.logger.Warn("failed to mark delivery failed", zap.String("delivery_id", job.ID), zap.Error(uerr))
	}
	s.metrics.RecordDelivery(s.publisher.Name(), string(models.DeliveryStatusFailed))
	s.logger.Error("log delivery abandoned",
		zap.String("delivery_id", job.ID),
		zap.String("day_id", job.Payload.DayID),
		zap.String("channel_id", job.Payload.ChannelID),
		zap.String("date", job.Payload.Date),
		zap.String("checksum", job.Payload.Checksum),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}
