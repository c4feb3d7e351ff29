package dto

import "time"

// DayRef identifies a schedule day by channel and date (YYYY-MM-DD).
type DayRef struct {
	ChannelID string `json:"channelId" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

// InsertPlacementRequest places a catalogue material into a break zone.
type InsertPlacementRequest struct {
	DayRef
	ExpectedVersion *int   `json:"expectedVersion" validate:"required,min=0"`
	ZoneID          string `json:"zoneId" validate:"required"`
	MaterialID      string `json:"materialId" validate:"required"`
	Position        int    `json:"position" validate:"required,min=1"`
	OrderID         string `json:"orderId"`
}

// RemovePlacementRequest deletes a placement.
type RemovePlacementRequest struct {
	DayRef
	ExpectedVersion *int   `form:"version" json:"expectedVersion" validate:"required,min=0"`
	PlacementID     string `json:"placementId" validate:"required"`
}

// MovePlacementRequest relocates a placement, possibly to another zone.
type MovePlacementRequest struct {
	DayRef
	ExpectedVersion *int   `json:"expectedVersion" validate:"required,min=0"`
	PlacementID     string `json:"-" validate:"required"`
	TargetZoneID    string `json:"targetZoneId" validate:"required"`
	Position        int    `json:"position" validate:"required,min=1"`
}

// ResetDayRequest clears every placement of an open day.
type ResetDayRequest struct {
	DayRef
	ExpectedVersion *int `json:"expectedVersion" validate:"required,min=0"`
}

// PoolEntryRequest is one material awaiting arrangement. Either MaterialID
// refers to the catalogue or Material carries the data inline.
type PoolEntryRequest struct {
	MaterialID string               `json:"materialId" validate:"required_without=Material"`
	Material   *InlineMaterialInput `json:"material" validate:"omitempty"`
	OrderID    string               `json:"orderId"`
}

// InlineMaterialInput describes a material not (yet) in the catalogue.
type InlineMaterialInput struct {
	ID               string     `json:"id" validate:"required"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	DurationSeconds  int        `json:"durationSeconds" validate:"required,min=1"`
	Kind             string     `json:"kind" validate:"required,oneof=C I G 9"`
	RequiredPosition string     `json:"requiredPosition" validate:"omitempty,oneof=FIRST FIRST_TWO LAST_TWO LAST"`
	ExclusivityGroup string     `json:"exclusivityGroup"`
	Channels         []string   `json:"channels"`
	ValidFrom        *time.Time `json:"validFrom"`
	ValidTo          *time.Time `json:"validTo"`
}

// AutoArrangeRequest runs the arrangement engine for one channel/day.
type AutoArrangeRequest struct {
	DayRef
	ExpectedVersion *int               `json:"expectedVersion" validate:"required,min=0"`
	Pool            []PoolEntryRequest `json:"pool" validate:"required,min=1,dive"`
	DryRun          bool               `json:"dryRun"`
}

// BatchChannelRequest names one channel taking part in a joint arrangement.
type BatchChannelRequest struct {
	ChannelID       string `json:"channelId" validate:"required"`
	ExpectedVersion *int   `json:"expectedVersion" validate:"required,min=0"`
}

// BatchAutoArrangeRequest arranges a shared pool across several channels of
// the same date. Zones are scanned by break sequence then channel priority.
type BatchAutoArrangeRequest struct {
	Date     string                `json:"date" validate:"required,datetime=2006-01-02"`
	Channels []BatchChannelRequest `json:"channels" validate:"required,min=1,dive"`
	Pool     []PoolEntryRequest    `json:"pool" validate:"required,min=1,dive"`
	DryRun   bool                  `json:"dryRun"`
}

// PlacementView is a placement as shown in the arrangement screen.
type PlacementView struct {
	ID               string `json:"id"`
	Position         int    `json:"position"`
	MaterialID       string `json:"materialId"`
	MaterialCode     string `json:"materialCode,omitempty"`
	MaterialName     string `json:"materialName,omitempty"`
	Kind             string `json:"kind,omitempty"`
	RequiredPosition string `json:"requiredPosition,omitempty"`
	ExclusivityGroup string `json:"exclusivityGroup,omitempty"`
	Seconds          int    `json:"seconds"`
	OrderID          string `json:"orderId,omitempty"`
}

// ZoneView summarises a break zone.
type ZoneView struct {
	ID               string          `json:"id"`
	ProgramID        string          `json:"programId"`
	ProgramOrder     int             `json:"programOrder"`
	BreakSequence    int             `json:"breakSequence"`
	CapacitySeconds  int             `json:"capacitySeconds"`
	UsedSeconds      int             `json:"usedSeconds"`
	RemainingSeconds int             `json:"remainingSeconds"`
	Placements       []PlacementView `json:"placements"`
}

// DayStats totals seconds per material kind.
type DayStats struct {
	CommercialSeconds    int `json:"commercialSeconds"`
	PromoSeconds         int `json:"promoSeconds"`
	IDCardSeconds        int `json:"idCardSeconds"`
	PublicServiceSeconds int `json:"publicServiceSeconds"`
	CapacitySeconds      int `json:"capacitySeconds"`
	UsedSeconds          int `json:"usedSeconds"`
	PlacementCount       int `json:"placementCount"`
}

// ArrangementView is the get-arrangement response.
type ArrangementView struct {
	DayID       string     `json:"dayId"`
	ChannelID   string     `json:"channelId"`
	Date        string     `json:"date"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	ConvertedAt *time.Time `json:"convertedAt,omitempty"`
	Zones       []ZoneView `json:"zones"`
	Stats       DayStats   `json:"stats"`
}

// PlacementResult is returned from insert and move.
type PlacementResult struct {
	Placement PlacementView   `json:"placement"`
	ZoneID    string          `json:"zoneId"`
	Day       ArrangementView `json:"day"`
}

// PlacedEntryView reports where the engine put a pool entry.
type PlacedEntryView struct {
	PlacementID string `json:"placementId"`
	MaterialID  string `json:"materialId"`
	OrderID     string `json:"orderId,omitempty"`
	ChannelID   string `json:"channelId"`
	ZoneID      string `json:"zoneId"`
	Position    int    `json:"position"`
	Seconds     int    `json:"seconds"`
}

// UnplacedEntryView reports a pool entry that could not be placed.
type UnplacedEntryView struct {
	MaterialID string                 `json:"materialId"`
	OrderID    string                 `json:"orderId,omitempty"`
	Seconds    int                    `json:"seconds"`
	Rule       string                 `json:"rule"`
	Message    string                 `json:"message"`
	ZoneID     string                 `json:"zoneId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// AutoArrangeResponse partitions the pool.
type AutoArrangeResponse struct {
	ChannelID string              `json:"channelId"`
	Date      string              `json:"date"`
	Version   int                 `json:"version"`
	DryRun    bool                `json:"dryRun"`
	Placed    []PlacedEntryView   `json:"placed"`
	Unplaced  []UnplacedEntryView `json:"unplaced"`
	ElapsedMS int64               `json:"elapsedMs"`
}

// BatchChannelResult is the persistence outcome for one channel in a batch.
type BatchChannelResult struct {
	ChannelID string      `json:"channelId"`
	Version   int         `json:"version"`
	Placed    int         `json:"placed"`
	Saved     bool        `json:"saved"`
	Error     *BatchError `json:"error,omitempty"`
}

// BatchError describes why a channel in a batch was not saved.
type BatchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchAutoArrangeResponse partitions the shared pool and reports per-channel saves in request order.
type BatchAutoArrangeResponse struct {
	Date      string               `json:"date"`
	DryRun    bool                 `json:"dryRun"`
	Placed    []PlacedEntryView    `json:"placed"`
	Unplaced  []UnplacedEntryView  `json:"unplaced"`
	Channels  []BatchChannelResult `json:"channels"`
	ElapsedMS int64                `json:"elapsedMs"`
}

// CheckReport lists rule violations found in stored placements.
type CheckReport struct {
	DayID      string           `json:"dayId"`
	Version    int              `json:"version"`
	Violations []CheckViolation `json:"violations"`
}

// CheckViolation ties a violation to the placement that broke it.
type CheckViolation struct {
	PlacementID string                 `json:"placementId"`
	ZoneID      string                 `json:"zoneId"`
	MaterialID  string                 `json:"materialId"`
	Position    int                    `json:"position"`
	Rule        string                 `json:"rule"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
}
