package transmission

import (
	"context"
	"errors"
	"fmt"
)

// Transports understood by New.
const (
	TransportNone = "none"
	TransportNATS = "nats"
	TransportMQTT = "mqtt"
)

// ErrInvalidMessage marks a message that no retry can fix.
var ErrInvalidMessage = errors.New("invalid log message")

// Message is a converted LOG handed to playout automation.
type Message struct {
	ChannelID    string
	ScheduleDate string
	Checksum     string
	Body         []byte
}

// Validate rejects messages missing routing or dedupe data.
func (m Message) Validate() error {
	switch {
	case m.ChannelID == "":
		return fmt.Errorf("%w: channel id missing", ErrInvalidMessage)
	case m.ScheduleDate == "":
		return fmt.Errorf("%w: schedule date missing", ErrInvalidMessage)
	case m.Checksum == "":
		return fmt.Errorf("%w: checksum missing", ErrInvalidMessage)
	case len(m.Body) == 0:
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Publisher delivers LOG messages downstream.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Destination(msg Message) string
	Name() string
	Close()
}

// NopPublisher accepts every message; used when delivery is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, msg Message) error { return msg.Validate() }

func (NopPublisher) Destination(Message) string { return "" }

func (NopPublisher) Name() string { return TransportNone }

func (NopPublisher) Close() {}
