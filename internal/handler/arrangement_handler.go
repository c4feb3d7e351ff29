package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/middleware"
	"github.com/cai360/TVBsAdScheduler/internal/service"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
	"github.com/cai360/TVBsAdScheduler/pkg/response"
)

type arrangementEditor interface {
	Get(ctx context.Context, channelID, date string) (*dto.ArrangementView, error)
	Insert(ctx context.Context, req dto.InsertPlacementRequest) (*dto.PlacementResult, error)
	Remove(ctx context.Context, req dto.RemovePlacementRequest) (*dto.ArrangementView, error)
	Move(ctx context.Context, req dto.MovePlacementRequest) (*dto.PlacementResult, error)
	Reset(ctx context.Context, req dto.ResetDayRequest) (*dto.ArrangementView, error)
	Check(ctx context.Context, channelID, date string) (*dto.CheckReport, error)
}

type autoArranger interface {
	AutoArrange(ctx context.Context, req dto.AutoArrangeRequest) (*dto.AutoArrangeResponse, error)
	AutoArrangeBatch(ctx context.Context, req dto.BatchAutoArrangeRequest) (*dto.BatchAutoArrangeResponse, error)
}

// ArrangementHandler exposes break arrangement endpoints.
type ArrangementHandler struct {
	editor   arrangementEditor
	arranger autoArranger
}

// NewArrangementHandler constructs the handler.
func NewArrangementHandler(editor *service.LogEditService, arranger *service.ArrangementService) *ArrangementHandler {
	return &ArrangementHandler{editor: editor, arranger: arranger}
}

func dayRef(c *gin.Context) dto.DayRef {
	return dto.DayRef{ChannelID: c.Param("channelId"), Date: c.Param("date")}
}

// Get godoc
// @Summary Get the break arrangement of a channel day
// @Tags Arrangement
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /arrangements/{channelId}/{date} [get]
func (h *ArrangementHandler) Get(c *gin.Context) {
	view, err := h.editor.Get(c.Request.Context(), c.Param("channelId"), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "version", view.Version)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Insert godoc
// @Summary Insert a material into a break zone
// @Tags Arrangement
// @Accept json
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Param payload body dto.InsertPlacementRequest true "Insert payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /arrangements/{channelId}/{date}/placements [post]
func (h *ArrangementHandler) Insert(c *gin.Context) {
	var req dto.InsertPlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid insert payload"))
		return
	}
	req.DayRef = dayRef(c)
	result, err := h.editor.Insert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Remove godoc
// @Summary Remove a placement
// @Tags Arrangement
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Param placementId path string true "Placement ID"
// @Param version query int true "Expected day version"
// @Success 200 {object} response.Envelope
// @Router /arrangements/{channelId}/{date}/placements/{placementId} [delete]
func (h *ArrangementHandler) Remove(c *gin.Context) {
	version, err := strconv.Atoi(c.Query("version"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "version query parameter must be an integer"))
		return
	}
	view, err := h.editor.Remove(c.Request.Context(), dto.RemovePlacementRequest{
		DayRef:          dayRef(c),
		ExpectedVersion: &version,
		PlacementID:     c.Param("placementId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Move godoc
// @Summary Move a placement to another position or zone
// @Tags Arrangement
// @Accept json
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Param placementId path string true "Placement ID"
// @Param payload body dto.MovePlacementRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /arrangements/{channelId}/{date}/placements/{placementId}/move [post]
func (h *ArrangementHandler) Move(c *gin.Context) {
	var req dto.MovePlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	req.DayRef = dayRef(c)
	req.PlacementID = c.Param("placementId")
	result, err := h.editor.Move(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reset godoc
// @Summary Clear every placement of an open day
// @Tags Arrangement
// @Accept json
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Param payload body dto.ResetDayRequest true "Reset payload"
// @Success 200 {object} response.Envelope
// @Router /arrangements/{channelId}/{date}/reset [post]
func (h *ArrangementHandler) Reset(c *gin.Context) {
	var req dto.ResetDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}
	req.DayRef = dayRef(c)
	view, err := h.editor.Reset(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Check godoc
// @Summary Re-validate stored placements against the current catalogue
// @Tags Arrangement
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /arrangements/{channelId}/{date}/check [get]
func (h *ArrangementHandler) Check(c *gin.Context) {
	report, err := h.editor.Check(c.Request.Context(), c.Param("channelId"), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "violations", len(report.Violations))
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// AutoArrange godoc
// @Summary Arrange a material pool into a channel day
// @Tags Arrangement
// @Accept json
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Param payload body dto.AutoArrangeRequest true "Pool payload"
// @Success 200 {object} response.Envelope
// @Router /arrangements/{channelId}/{date}/auto-arrange [post]
func (h *ArrangementHandler) AutoArrange(c *gin.Context) {
	var req dto.AutoArrangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid auto-arrange payload"))
		return
	}
	req.DayRef = dayRef(c)
	result, err := h.arranger.AutoArrange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AutoArrangeBatch godoc
// @Summary Arrange one material pool across several channels of a date
// @Tags Arrangement
// @Accept json
// @Produce json
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Param payload body dto.BatchAutoArrangeRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /arrangement-batches/{date} [post]
func (h *ArrangementHandler) AutoArrangeBatch(c *gin.Context) {
	var req dto.BatchAutoArrangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	req.Date = c.Param("date")
	result, err := h.arranger.AutoArrangeBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
