package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates renderings of a broadcast log.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
)

// DeliveryStatus captures the lifecycle of a LOG hand-off to playout.
type DeliveryStatus string

const (
	DeliveryStatusQueued    DeliveryStatus = "QUEUED"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// LogDelivery tracks publication of a converted LOG to the playout transport.
type LogDelivery struct {
	ID           string         `db:"id" json:"id"`
	DayID        string         `db:"day_id" json:"day_id"`
	Checksum     string         `db:"checksum" json:"checksum"`
	Target       DeliveryTarget `db:"target" json:"target"`
	Status       DeliveryStatus `db:"status" json:"status"`
	Attempts     int            `db:"attempts" json:"attempts"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	DeliveredAt  *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
}

// DeliveryTarget records where the LOG was sent, persisted as JSONB.
type DeliveryTarget struct {
	Transport   string `json:"transport"`
	Destination string `json:"destination,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Value marshals the target to JSON for persistence.
func (t DeliveryTarget) Value() (driver.Value, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal delivery target: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the target.
func (t *DeliveryTarget) Scan(value interface{}) error {
	if value == nil {
		*t = DeliveryTarget{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for DeliveryTarget", value)
	}
	if len(data) == 0 {
		*t = DeliveryTarget{}
		return nil
	}
	if err := json.Unmarshal(data, t); err != nil {
		return fmt.Errorf("unmarshal delivery target: %w", err)
	}
	return nil
}
