package transmission

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig configures delivery to playout devices over MQTT.
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes retained LOG messages, one topic per channel.
type MQTTPublisher struct {
	client mqttClient
	cfg    MQTTConfig
	logger *zap.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("connected to mqtt broker", zap.String("broker", cfg.BrokerURL))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeoutOrDefault(cfg.Timeout)) {
		return nil, fmt.Errorf("connect mqtt %s: timeout", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.BrokerURL, err)
	}
	return newMQTTPublisher(client, cfg, logger), nil
}

func newMQTTPublisher(client mqttClient, cfg MQTTConfig, logger *zap.Logger) *MQTTPublisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "broadcast/logs"
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTPublisher{client: client, cfg: cfg, logger: logger}
}

// Publish sends the LOG body as a retained message and waits for completion.
func (p *MQTTPublisher) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	topic := p.Destination(msg)
	token := p.client.Publish(topic, p.cfg.QoS, true, msg.Body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish log to %s: %w", topic, ctx.Err())
	case <-time.After(timeoutOrDefault(p.cfg.Timeout)):
		return fmt.Errorf("publish log to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish log to %s: %w", topic, err)
	}
	return nil
}

// Destination is the topic a message is published on.
func (p *MQTTPublisher) Destination(msg Message) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.TopicPrefix, msg.ChannelID, msg.ScheduleDate)
}

func (p *MQTTPublisher) Name() string { return TransportMQTT }

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client == nil {
		return
	}
	p.client.Disconnect(250)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
