package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	"github.com/cai360/TVBsAdScheduler/pkg/middleware/requestid"
)

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit records a day level audit entry after every successful request. The
// resource id is "<channel>:<date>" taken from the route.
func Audit(repo AuditWriter, logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims := ClaimsFromContext(c); claims != nil {
			id := claims.UserID
			userID = &id
		}
		var resourceID *string
		switch channel, date := c.Param("channelId"), c.Param("date"); {
		case channel != "":
			id := channel + ":" + date
			resourceID = &id
		case date != "":
			resourceID = &date
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":         c.FullPath(),
			"method":       c.Request.Method,
			"status":       c.Writer.Status(),
			"placement_id": c.Param("placementId"),
			"latency_ms":   time.Since(start).Milliseconds(),
			"request_id":   requestid.Value(c),
		})

		if err := repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   models.AuditResourceScheduleDay,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}); err != nil {
			logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
