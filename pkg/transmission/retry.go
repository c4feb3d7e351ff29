package transmission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig tunes the exponential backoff around a publisher.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// RetryPublisher retries transient publish failures with exponential backoff.
// Invalid messages fail immediately.
type RetryPublisher struct {
	next   Publisher
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetryPublisher wraps next.
func NewRetryPublisher(next Publisher, cfg RetryConfig, logger *zap.Logger) *RetryPublisher {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPublisher{next: next, cfg: cfg, logger: logger}
}

// Publish forwards msg until it succeeds, fails permanently or the budget runs out.
func (p *RetryPublisher) Publish(ctx context.Context, msg Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.MaxElapsedTime = p.cfg.MaxElapsedTime

	attempts := 0
	operation := func() error {
		attempts++
		err := p.next.Publish(ctx, msg)
		if err != nil && errors.Is(err, ErrInvalidMessage) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("log publish failed, retrying",
			zap.String("transport", p.next.Name()),
			zap.String("channel_id", msg.ChannelID),
			zap.Int("attempt", attempts),
			zap.Duration("next_retry_in", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("publish after %d attempts: %w", attempts, err)
	}
	return nil
}

func (p *RetryPublisher) Destination(msg Message) string { return p.next.Destination(msg) }

func (p *RetryPublisher) Name() string { return p.next.Name() }

func (p *RetryPublisher) Close() { p.next.Close() }
