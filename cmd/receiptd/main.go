package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/squirll/receiptd/internal/api"
	"github.com/squirll/receiptd/internal/api/handlers"
	"github.com/squirll/receiptd/internal/jobs"
	"github.com/squirll/receiptd/internal/notify"
	"github.com/squirll/receiptd/internal/repository"
	"github.com/squirll/receiptd/internal/service"
	"github.com/squirll/receiptd/pkg/auth"
	"github.com/squirll/receiptd/pkg/config"
	"github.com/squirll/receiptd/pkg/logger"
	"github.com/squirll/receiptd/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting receiptd service")

	// Initialize database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	receiptRepo := repository.NewReceiptRepository(db, appLogger)
	emailRepo := repository.NewEmailRepository(db, appLogger)
	tagRepo := repository.NewTagRepository(db, appLogger)
	usageRepo := repository.NewUsageRepository(db, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)

	// Notification hub
	hub := notify.NewHub(appLogger)
	go hub.Run(ctx)

	// Background job queue
	queue := jobs.NewQueue(cfg.Jobs.BufferSize, appLogger)
	queue.Start(ctx, cfg.Jobs.Workers)

	// Blob storage
	storage, err := service.NewGCSStorage(ctx, &cfg.Storage, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}
	defer storage.Close()

	// Extraction and categorization backends
	extractor, err := service.NewExtractor(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize extractor", zap.Error(err))
	}
	appLogger.Info("Extraction backend ready", zap.String("backend", extractor.Name()))

	classifier, err := service.NewGeminiClassifier(&cfg.Gemini, cfg.Extraction.Timeout, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize item classifier", zap.Error(err))
	}

	// Initialize services
	categorizer := service.NewCategorizerService(receiptRepo, classifier, appLogger)
	ingestService := service.NewIngestService(receiptRepo, storage, extractor, categorizer, queue, hub, appLogger)
	emailService := service.NewEmailService(userRepo, emailRepo, ingestService, queue, hub, appLogger)

	// Initialize handlers
	receiptHandler := handlers.NewReceiptHandler(ingestService, receiptRepo, tagRepo, storage, appLogger)
	emailHandler := handlers.NewEmailHandler(emailService, emailRepo, appLogger)
	usageHandler := handlers.NewUsageHandler(usageRepo, appLogger)
	notificationHandler := handlers.NewNotificationHandler(hub, appLogger)

	// Setup router
	app := api.SetupRouter(receiptHandler, emailHandler, usageHandler, notificationHandler, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	// Let in-flight background jobs finish before the pool closes.
	queue.Stop()
	cancel()
}
