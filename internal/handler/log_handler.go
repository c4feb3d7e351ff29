package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/middleware"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	"github.com/cai360/TVBsAdScheduler/internal/service"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
	"github.com/cai360/TVBsAdScheduler/pkg/response"
)

// ChecksumHeader carries the BLAKE2b checksum of a served LOG body.
const ChecksumHeader = "X-Log-Checksum"

type logConverter interface {
	Convert(ctx context.Context, req dto.ConvertDayRequest) (*dto.ConversionResult, error)
	GetExport(ctx context.Context, channelID, date string) (*models.BroadcastLogRecord, error)
	Render(ctx context.Context, req dto.RenderLogRequest) (*dto.RenderedLog, error)
	Download(ctx context.Context, token string) (*dto.RenderedLog, error)
}

// LogHandler exposes LOG conversion and export endpoints.
type LogHandler struct {
	service logConverter
	logger  *zap.Logger
}

// NewLogHandler constructs the handler.
func NewLogHandler(svc *service.LogConversionService, logger *zap.Logger) *LogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHandler{service: svc, logger: logger}
}

// Convert godoc
// @Summary Freeze a channel day into its broadcast LOG
// @Description Idempotent. Converting an already frozen day returns the stored export unchanged.
// @Tags Logs
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /logs/{channelId}/{date}/convert [post]
func (h *LogHandler) Convert(c *gin.Context) {
	result, err := h.service.Convert(c.Request.Context(), dto.ConvertDayRequest{DayRef: dayRef(c)})
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := middleware.ClaimsFromContext(c); claims != nil && !result.AlreadyConverted {
		h.logger.Info("schedule day converted",
			zap.String("user_id", claims.UserID),
			zap.String("operator", claims.Operator()),
			zap.String("channel_id", result.ChannelID),
			zap.String("date", result.Date),
			zap.String("checksum", result.Checksum),
		)
	}
	c.Header(ChecksumHeader, result.Checksum)
	status := http.StatusCreated
	if result.AlreadyConverted {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

// Export godoc
// @Summary Fetch the canonical LOG export of a converted day
// @Tags Logs
// @Produce json
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Success 200 {string} string "canonical JSON"
// @Failure 412 {object} response.Envelope
// @Router /logs/{channelId}/{date} [get]
func (h *LogHandler) Export(c *gin.Context) {
	record, err := h.service.GetExport(c.Request.Context(), c.Param("channelId"), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Bytes(c, "application/json", record.Payload, map[string]string{ChecksumHeader: record.Checksum})
}

// Render godoc
// @Summary Render a converted LOG as JSON, CSV or PDF
// @Tags Logs
// @Produce octet-stream
// @Param channelId path string true "Channel ID"
// @Param date path string true "Schedule date (YYYY-MM-DD)"
// @Param format query string true "json, csv or pdf"
// @Success 200 {file} file
// @Router /logs/{channelId}/{date}/render [get]
func (h *LogHandler) Render(c *gin.Context) {
	rendered, err := h.service.Render(c.Request.Context(), dto.RenderLogRequest{DayRef: dayRef(c), Format: c.Query("format")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, rendered.FileName, rendered.ContentType, rendered.Body, map[string]string{ChecksumHeader: rendered.Checksum})
}

// Download godoc
// @Summary Download a stored LOG file with a signed token
// @Tags Logs
// @Produce json
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /downloads/logs [get]
func (h *LogHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download token is required"))
		return
	}
	file, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.FileName, file.ContentType, file.Body, map[string]string{ChecksumHeader: file.Checksum})
}
