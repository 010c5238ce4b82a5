package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ingestion-service/internal/config"
	"ingestion-service/internal/events"
	"ingestion-service/internal/handlers"
	"ingestion-service/internal/identifier"
	"ingestion-service/internal/jobs"
	"ingestion-service/internal/middleware"
	"ingestion-service/internal/repository"
	"ingestion-service/internal/services"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Product Ingestion API
// @version 1.0.0
// @description Bulk product ingestion pipeline: validate spreadsheet uploads, process them in resumable batches, and track import sessions
/// @termsOfService http://swagger.io/terms/

// @contact.name Ingestion API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8095
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	// Set Redis password from GCP Secret Manager
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancelPing()

	// Initialize repositories
	catalogRepo := repository.NewCatalogRepository(db, redisClient)
	sessionRepo := repository.NewSessionRepository(db)

	// Initialize event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if os.Getenv("NATS_URL") != "" {
		eventsPublisher, err = events.NewPublisher(logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	// Initialize ingestion pipeline
	idGenerator := identifier.New(catalogRepo)
	var publisher services.EventPublisher
	if eventsPublisher != nil {
		publisher = eventsPublisher
	}
	ingestionService := services.NewIngestionService(sessionRepo, catalogRepo, idGenerator, publisher, logger, services.Config{
		BatchSize:        cfg.BatchSize,
		JobTimeBudget:    cfg.JobTimeBudget,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
	})

	// Initialize handlers
	importHandler := handlers.NewImportHandler(ingestionService)

	// Start session sweeper
	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	sweeper := jobs.NewSessionSweeper(sessionRepo, logger, cfg.SessionTTL)
	go sweeper.Start(sweeperCtx)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("ingestion-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("ingestion-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("tesseract", "ingestion_service")
	log.Println("✓ Prometheus metrics initialized")

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	// Add observability middleware (metrics + tracing)
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("ingestion-service"))
	router.Use(gosharedmw.CompressionMiddleware())

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoints (no tenant context required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)
	router.GET("/metrics", gosharedmw.Handler())

	// API routes require tenant context
	api := router.Group("/api/v1")
	api.Use(middleware.TenantMiddleware())
	{
		products := api.Group("/products/import")
		{
			products.GET("/template", importHandler.GetImportTemplate)
			products.POST("/validate", importHandler.ValidateImport)
			products.POST("/:sessionId/process", importHandler.ProcessImport)
			products.GET("/:sessionId/status", importHandler.GetImportStatus)
			products.POST("/:sessionId/resume", importHandler.ResumeImport)
		}

		api.GET("/imports", importHandler.ListImports)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Ingestion service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down ingestion-service...")

	cancelSweeper()
	sweeper.Stop()

	// Cancel in-flight runs; their sessions park in TIMEOUT for a later
	// resume from the last committed batch.
	ingestionService.Shutdown()

	// Shutdown tracer provider
	if tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Println("Ingestion service stopped")
}
