package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

type converterStub struct {
	already   bool
	exportErr error
	render    dto.RenderLogRequest
	token     string
}

func (s *converterStub) Convert(ctx context.Context, req dto.ConvertDayRequest) (*dto.ConversionResult, error) {
	return &dto.ConversionResult{ChannelID: req.ChannelID, Date: req.Date, Checksum: "abc123", AlreadyConverted: s.already}, nil
}

func (s *converterStub) GetExport(ctx context.Context, channelID, date string) (*models.BroadcastLogRecord, error) {
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	return &models.BroadcastLogRecord{ChannelID: channelID, Payload: []byte(`{"b":1,"a":2}`), Checksum: "abc123"}, nil
}

func (s *converterStub) Render(ctx context.Context, req dto.RenderLogRequest) (*dto.RenderedLog, error) {
	s.render = req
	return &dto.RenderedLog{FileName: "TVB1-2024-05-01.csv", ContentType: "text/csv", Checksum: "abc123", Body: []byte("a,b\n")}, nil
}

func (s *converterStub) Download(ctx context.Context, token string) (*dto.RenderedLog, error) {
	s.token = token
	if token == "expired" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return &dto.RenderedLog{FileName: "2024-05-01.json", ContentType: "application/json", Checksum: "abc123", Body: []byte(`{}`)}, nil
}

func newLogRouter(h *LogHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/logs/:channelId/:date/convert", h.Convert)
	router.GET("/logs/:channelId/:date", h.Export)
	router.GET("/logs/:channelId/:date/render", h.Render)
	router.GET("/downloads/logs", h.Download)
	return router
}

func TestLogHandlerConvertStatusReflectsReplay(t *testing.T) {
	stub := &converterStub{}
	router := newLogRouter(&LogHandler{service: stub})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/logs/TVB1/2024-05-01/convert", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "abc123", w.Header().Get(ChecksumHeader))

	stub.already = true
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/logs/TVB1/2024-05-01/convert", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLogHandlerExportServesStoredBytes(t *testing.T) {
	router := newLogRouter(&LogHandler{service: &converterStub{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs/TVB1/2024-05-01", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"b":1,"a":2}`, w.Body.String())
	assert.Equal(t, "abc123", w.Header().Get(ChecksumHeader))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestLogHandlerExportBeforeConversion(t *testing.T) {
	stub := &converterStub{exportErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "schedule day has not been converted")}
	router := newLogRouter(&LogHandler{service: stub})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs/TVB1/2024-05-01", nil))
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestLogHandlerRenderAttachment(t *testing.T) {
	stub := &converterStub{}
	router := newLogRouter(&LogHandler{service: stub})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs/TVB1/2024-05-01/render?format=csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", stub.render.Format)
	assert.Equal(t, "TVB1", stub.render.ChannelID)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "TVB1-2024-05-01.csv")
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestLogHandlerDownloadToken(t *testing.T) {
	stub := &converterStub{}
	router := newLogRouter(&LogHandler{service: stub})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloads/logs", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloads/logs?token=expired", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloads/logs?token=good", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good", stub.token)
}
