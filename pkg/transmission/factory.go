package transmission

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Config selects and configures the delivery transport.
type Config struct {
	Transport string
	NATS      NATSConfig
	MQTT      MQTTConfig
	Retry     RetryConfig
}

// New builds the configured publisher wrapped with retries.
func New(cfg Config, logger *zap.Logger) (Publisher, error) {
	var (
		base Publisher
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", TransportNone:
		return NopPublisher{}, nil
	case TransportNATS:
		base, err = NewNATSPublisher(cfg.NATS, logger)
	case TransportMQTT:
		base, err = NewMQTTPublisher(cfg.MQTT, logger)
	default:
		return nil, fmt.Errorf("unknown log delivery transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}
	return NewRetryPublisher(base, cfg.Retry, logger), nil
}
