package logger

import (
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cai360/TVBsAdScheduler/pkg/config"
	"github.com/cai360/TVBsAdScheduler/pkg/middleware/requestid"
)

// sentryClient backs the Sentry core and is drained by Flush.
var sentryClient *sentry.Client

// New builds the process logger. When a Sentry DSN is configured, error level
// entries (integrity failures, exhausted deliveries) are also sent to Sentry.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	if cfg.Log.SentryDSN == "" {
		sentryClient = nil
		return base, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.Log.SentryDSN,
		Environment: cfg.Env,
	})
	if err != nil {
		return nil, err
	}
	sentryClient = client
	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags:              map[string]string{"component": "ad-scheduler"},
	}, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, err
	}
	return zapsentry.AttachCoreToLogger(core, base), nil
}

// Flush drains buffered Sentry events before shutdown.
// It reports whether the queue drained before the timeout.
func Flush(timeout time.Duration) bool {
	if sentryClient == nil {
		return true
	}
	return sentryClient.Flush(timeout)
}

func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		reqID := requestid.Value(c)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if channelID := c.Param("channelId"); channelID != "" {
			fields = append(fields, zap.String("channel_id", channelID))
		}
		if date := c.Param("date"); date != "" {
			fields = append(fields, zap.String("date", date))
		}
		if reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}

		switch {
		case c.Writer.Status() >= 500:
			l.Error("http_request", fields...)
		case c.Writer.Status() >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
