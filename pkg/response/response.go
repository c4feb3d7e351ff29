package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// Bytes writes a pre-encoded body untouched so exports stay byte-identical.
func Bytes(c *gin.Context, contentType string, body []byte, headers map[string]string) {
	noStore(c)
	for k, v := range headers {
		c.Header(k, v)
	}
	c.Data(http.StatusOK, contentType, body)
}

// Attachment writes body as a file download.
func Attachment(c *gin.Context, fileName, contentType string, body []byte, headers map[string]string) {
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", fileName)
	Bytes(c, contentType, body, headers)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
