package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/cai360/TVBsAdScheduler/api/swagger"
	"github.com/cai360/TVBsAdScheduler/internal/handler"
	internalmiddleware "github.com/cai360/TVBsAdScheduler/internal/middleware"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	"github.com/cai360/TVBsAdScheduler/internal/repository"
	"github.com/cai360/TVBsAdScheduler/internal/service"
	"github.com/cai360/TVBsAdScheduler/pkg/cache"
	"github.com/cai360/TVBsAdScheduler/pkg/config"
	"github.com/cai360/TVBsAdScheduler/pkg/database"
	"github.com/cai360/TVBsAdScheduler/pkg/logger"
	corsmiddleware "github.com/cai360/TVBsAdScheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/cai360/TVBsAdScheduler/pkg/middleware/requestid"
	"github.com/cai360/TVBsAdScheduler/pkg/storage"
	"github.com/cai360/TVBsAdScheduler/pkg/transmission"
)

// @title TVB Ad Scheduler API
// @version 1.0.0
// @description Break slot allocation and broadcast LOG conversion
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	defer logger.Flush(2 * time.Second)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, arrangement views will not be cached", zap.Error(err))
	}

	files, err := storage.NewLogStore(cfg.LogStorage.Dir)
	if err != nil {
		logr.Fatal("failed to prepare log storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.LogStorage.SignedURLSecret, cfg.LogStorage.SignedURLTTL)

	publisher, err := transmission.New(transmission.Config{
		Transport: cfg.Delivery.Transport,
		NATS: transmission.NATSConfig{
			URL:            cfg.Delivery.NATSURL,
			Stream:         cfg.Delivery.NATSStream,
			SubjectPrefix:  cfg.Delivery.NATSSubjectPrefix,
			MaxReconnects:  cfg.Delivery.NATSMaxReconnects,
			ReconnectWait:  cfg.Delivery.NATSReconnectWait,
			ConnectionName: "ad-scheduler",
		},
		MQTT: transmission.MQTTConfig{
			BrokerURL:   cfg.Delivery.MQTTBrokerURL,
			ClientID:    cfg.Delivery.MQTTClientID,
			TopicPrefix: cfg.Delivery.MQTTTopicPrefix,
			QoS:         byte(cfg.Delivery.MQTTQoS),
		},
		Retry: transmission.RetryConfig{MaxElapsedTime: cfg.Delivery.BackoffMaxTime},
	}, logr)
	if err != nil {
		logr.Fatal("failed to init log delivery transport", zap.Error(err))
	}
	defer publisher.Close()

	dayRepo := repository.NewScheduleDayRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	broadcastLogRepo := repository.NewBroadcastLogRepository(db)
	deliveryRepo := repository.NewLogDeliveryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer redisClient.Close()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Arrangement.CacheTTL, logr, cfg.Arrangement.CacheEnabled)

	deliverySvc := service.NewLogDeliveryService(deliveryRepo, publisher, metricsSvc, logr, service.DeliveryConfig{
		Workers:    cfg.Delivery.Workers,
		MaxRetries: cfg.Delivery.Retries,
		RetryDelay: cfg.Delivery.RetryDelay,
	})
	deliverySvc.Start(ctx)
	defer deliverySvc.Stop()

	editSvc := service.NewLogEditService(dayRepo, materialRepo, db, cacheSvc, metricsSvc, validate, logr)
	arrangementSvc := service.NewArrangementService(dayRepo, materialRepo, db, nil, cacheSvc, metricsSvc, validate, logr, service.ArrangementConfig{
		MaxPoolSize:  cfg.Arrangement.MaxPoolSize,
		BatchWorkers: cfg.Arrangement.BatchWorkers,
	})
	defer arrangementSvc.Close()
	conversionSvc := service.NewLogConversionService(dayRepo, broadcastLogRepo, db, files, signer, deliverySvc, cacheSvc, metricsSvc, validate, logr, service.ConversionConfig{
		DownloadBaseURL: cfg.APIPrefix + "/downloads/logs",
	})
	materialSvc := service.NewMaterialService(materialRepo, validate)
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = cache.Probe{Client: redisClient}
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	arrangementHandler := handler.NewArrangementHandler(editSvc, arrangementSvc)
	logHandler := handler.NewLogHandler(conversionSvc, logr)
	catalogueHandler := handler.NewCatalogueHandler(materialSvc, deliverySvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.GET("/downloads/logs", logHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokenSvc))

	anyRole := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleScheduler, models.RoleViewer)
	editors := internalmiddleware.RequireEditor()
	audit := func(action string) gin.HandlerFunc {
		return internalmiddleware.Audit(auditRepo, logr, action)
	}

	arrangements := secured.Group("/arrangements/:channelId/:date")
	arrangements.GET("", anyRole, arrangementHandler.Get)
	arrangements.GET("/check", anyRole, arrangementHandler.Check)
	arrangements.POST("/placements", editors, audit(models.AuditActionPlacementInsert), arrangementHandler.Insert)
	arrangements.DELETE("/placements/:placementId", editors, audit(models.AuditActionPlacementRemove), arrangementHandler.Remove)
	arrangements.POST("/placements/:placementId/move", editors, audit(models.AuditActionPlacementMove), arrangementHandler.Move)
	arrangements.POST("/auto-arrange", editors, audit(models.AuditActionAutoArrange), arrangementHandler.AutoArrange)
	arrangements.POST("/reset", editors, audit(models.AuditActionDayReset), arrangementHandler.Reset)
	secured.POST("/arrangement-batches/:date", editors, audit(models.AuditActionAutoArrange), arrangementHandler.AutoArrangeBatch)

	logs := secured.Group("/logs/:channelId/:date")
	logs.GET("", anyRole, logHandler.Export)
	logs.GET("/render", anyRole, logHandler.Render)
	logs.POST("/convert", editors, audit(models.AuditActionDayConvert), logHandler.Convert)

	secured.GET("/materials", anyRole, catalogueHandler.Materials)
	secured.GET("/deliveries/:id", editors, catalogueHandler.Delivery)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "delivery", publisher.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
