package dto

import (
	"encoding/json"
	"time"
)

// ConvertDayRequest freezes a day.
type ConvertDayRequest struct {
	DayRef
}

// ConversionResult describes a frozen day and its export.
type ConversionResult struct {
	DayID            string          `json:"dayId"`
	ChannelID        string          `json:"channelId"`
	Date             string          `json:"date"`
	Version          int             `json:"version"`
	Checksum         string          `json:"checksum"`
	ConvertedAt      time.Time       `json:"convertedAt"`
	AlreadyConverted bool            `json:"alreadyConverted"`
	DownloadURL      string          `json:"downloadUrl,omitempty"`
	DeliveryID       string          `json:"deliveryId,omitempty"`
	Log              json.RawMessage `json:"log"`
}

// RenderLogRequest asks for a CSV or PDF rendering of a converted LOG.
type RenderLogRequest struct {
	DayRef
	Format string `form:"format" json:"format" validate:"required,oneof=csv pdf json"`
}

// RenderedLog is a rendered export ready for download.
type RenderedLog struct {
	FileName    string
	ContentType string
	Checksum    string
	Body        []byte
}
