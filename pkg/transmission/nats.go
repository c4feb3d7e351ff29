package transmission

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// NATSConfig holds the JetStream connection settings.
type NATSConfig struct {
	URL            string
	Stream         string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

type natsConn interface {
	Close()
}

type jetStreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes LOGs to a JetStream subject per channel. The
// checksum is sent as the message id so the stream drops redeliveries.
type NATSPublisher struct {
	nc     natsConn
	js     jetStreamPublisher
	cfg    NATSConfig
	logger *zap.Logger
}

// NewNATSPublisher connects to NATS and opens a JetStream context.
func NewNATSPublisher(cfg NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from nats", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to nats", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return newNATSPublisher(nc, js, cfg, logger), nil
}

func newNATSPublisher(nc natsConn, js jetStreamPublisher, cfg NATSConfig, logger *zap.Logger) *NATSPublisher {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "broadcast.logs"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, js: js, cfg: cfg, logger: logger}
}

// Publish sends the LOG body and waits for the stream ack.
func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	natsMsg := nats.NewMsg(p.Destination(msg))
	natsMsg.Data = msg.Body
	natsMsg.Header.Set(nats.MsgIdHdr, msg.Checksum)
	natsMsg.Header.Set("Log-Channel", msg.ChannelID)
	natsMsg.Header.Set("Log-Date", msg.ScheduleDate)

	var opts []jetstream.PublishOpt
	if p.cfg.Stream != "" {
		opts = append(opts, jetstream.WithExpectStream(p.cfg.Stream))
	}
	ack, err := p.js.PublishMsg(ctx, natsMsg, opts...)
	if err != nil {
		return fmt.Errorf("publish log to %s: %w", natsMsg.Subject, err)
	}
	if ack != nil && ack.Duplicate {
		p.logger.Info("log already in stream", zap.String("subject", natsMsg.Subject), zap.String("checksum", msg.Checksum))
	}
	return nil
}

// Destination is the subject a message is published on.
func (p *NATSPublisher) Destination(msg Message) string {
	return fmt.Sprintf("%s.%s", p.cfg.SubjectPrefix, msg.ChannelID)
}

func (p *NATSPublisher) Name() string { return TransportNATS }

// Close closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	p.nc.Close()
}
