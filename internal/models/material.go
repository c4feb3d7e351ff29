package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// MaterialKind classifies broadcast material.
type MaterialKind string

const (
	MaterialKindCommercial    MaterialKind = "C"
	MaterialKindIDCard        MaterialKind = "I"
	MaterialKindPublicService MaterialKind = "G"
	MaterialKindPromo         MaterialKind = "9"
)

// Valid reports whether the kind is one of the known codes.
func (k MaterialKind) Valid() bool {
	switch k {
	case MaterialKindCommercial, MaterialKindIDCard, MaterialKindPublicService, MaterialKindPromo:
		return true
	default:
		return false
	}
}

// RequiredPosition pins a material to the head or tail of a break zone.
type RequiredPosition string

const (
	RequiredPositionNone     RequiredPosition = ""
	RequiredPositionFirst    RequiredPosition = "FIRST"
	RequiredPositionFirstTwo RequiredPosition = "FIRST_TWO"
	RequiredPositionLastTwo  RequiredPosition = "LAST_TWO"
	RequiredPositionLast     RequiredPosition = "LAST"
)

// Valid reports whether the value is a known constraint.
func (r RequiredPosition) Valid() bool {
	switch r {
	case RequiredPositionNone, RequiredPositionFirst, RequiredPositionFirstTwo, RequiredPositionLastTwo, RequiredPositionLast:
		return true
	default:
		return false
	}
}

// Admits reports whether a 1-based position satisfies the constraint inside a
// zone holding count placements.
func (r RequiredPosition) Admits(position, count int) bool {
	if position < 1 || position > count {
		return false
	}
	switch r {
	case RequiredPositionFirst:
		return position == 1
	case RequiredPositionFirstTwo:
		return position <= 2
	case RequiredPositionLastTwo:
		return position >= count-1
	case RequiredPositionLast:
		return position == count
	default:
		return true
	}
}

// Material is a catalogued clip that can be placed into break zones.
type Material struct {
	ID               string           `db:"id" json:"id"`
	Code             string           `db:"code" json:"code"`
	Name             string           `db:"name" json:"name"`
	DurationSeconds  int              `db:"duration_seconds" json:"duration_seconds"`
	Kind             MaterialKind     `db:"kind" json:"kind"`
	RequiredPosition RequiredPosition `db:"required_position" json:"required_position,omitempty"`
	ExclusivityGroup string           `db:"exclusivity_group" json:"exclusivity_group,omitempty"`
	Channels         pq.StringArray   `db:"channels" json:"channels"`
	ValidFrom        *time.Time       `db:"valid_from" json:"valid_from,omitempty"`
	ValidTo          *time.Time       `db:"valid_to" json:"valid_to,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// AllowsChannel reports whether the material may air on the channel. An empty
// restriction set allows every channel.
func (m Material) AllowsChannel(channelID string) bool {
	if len(m.Channels) == 0 {
		return true
	}
	for _, ch := range m.Channels {
		if strings.EqualFold(strings.TrimSpace(ch), channelID) {
			return true
		}
	}
	return false
}

// ValidOn reports whether the date falls inside the inclusive validity window.
// Nil bounds are open.
func (m Material) ValidOn(date time.Time) bool {
	day := DateKey(date)
	if m.ValidFrom != nil && day < DateKey(*m.ValidFrom) {
		return false
	}
	if m.ValidTo != nil && day > DateKey(*m.ValidTo) {
		return false
	}
	return true
}

// SharesExclusivity reports whether two materials belong to the same
// non-empty exclusivity group.
func (m Material) SharesExclusivity(other Material) bool {
	if m.ExclusivityGroup == "" || other.ExclusivityGroup == "" {
		return false
	}
	return strings.EqualFold(m.ExclusivityGroup, other.ExclusivityGroup)
}

// PoolEntry is a material awaiting placement, optionally tied to a broadcast order.
type PoolEntry struct {
	Material Material `json:"material"`
	OrderID  string   `json:"order_id,omitempty"`
}

// MaterialFilter narrows catalogue listings.
type MaterialFilter struct {
	ChannelID string
	Kind      MaterialKind
	ValidOn   *time.Time
	Search    string
	Page      int
	PageSize  int
}
