package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medquiz-pro/session-service/internal/cache"
	"github.com/medquiz-pro/session-service/internal/config"
	"github.com/medquiz-pro/session-service/internal/engine"
	"github.com/medquiz-pro/session-service/internal/events"
	"github.com/medquiz-pro/session-service/internal/handlers"
	"github.com/medquiz-pro/session-service/internal/models"
	"github.com/medquiz-pro/session-service/internal/repositories/postgres"
	"github.com/medquiz-pro/session-service/internal/services"
	"github.com/medquiz-pro/session-service/internal/utils"
	"github.com/medquiz-pro/session-service/internal/validator"
	"github.com/medquiz-pro/session-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger *slog.Logger
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger = utils.NewDefaultSlogLogger()
	} else {
		logger = utils.NewDevelopmentSlogLogger()
	}
	slog.SetDefault(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.QuestionRecord{},
		&models.SessionRecord{},
		&models.ResultRecord{},
	); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	cacheService := cache.NewRedisCache(redisClient, logger)

	var publisher events.EventPublisher
	kafkaPublisher, err := events.NewKafkaEventPublisher(events.PublisherConfig{
		KafkaBrokers: cfg.KafkaBrokers,
		TopicName:    cfg.EventsTopic,
		Logger:       logger,
	})
	if err != nil {
		// Analytics are fire-and-forget; the engine runs without a broker.
		logger.Warn("Kafka unavailable, events will not be published", "error", err)
	} else {
		publisher = kafkaPublisher
		defer kafkaPublisher.Close()
	}

	repo := postgres.NewRepository(db)
	v := validator.New()

	sessionService := services.NewSessionService(
		cfg, repo, cacheService, publisher, engine.SystemClock(), logger, v)
	exportService := services.NewExportService(sessionService, logger)

	handlerLogger := utils.NewSlogLogger(logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(handlerLogger))

	handlerManager := handlers.NewHandlerManager(sessionService, exportService, handlerLogger)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Starting session service", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down session service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Session service stopped")
}
