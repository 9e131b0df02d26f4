package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/config"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/database"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/logging"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/optimizer"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/routes"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/services"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/vision"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	ctx := context.Background()

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (WARN+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB, slog.LevelWarn)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.LogLevel)}),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Storage
	files, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("storage init failed", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	slog.Info("storage ready", "backend", cfg.StorageBackend)

	// Moderation
	policy, err := cfg.ModerationPolicy()
	if err != nil {
		slog.Error("failed to load moderation policy", "path", cfg.PolicyPath, "error", err)
		os.Exit(1)
	}
	classifier, classifierReady := newClassifier(ctx, cfg)
	analyzer := moderation.NewAnalyzer(classifier, policy)

	tinify := optimizer.NewClient(optimizer.Config{
		APIKey:   cfg.TinifyAPIKey,
		Endpoint: cfg.TinifyEndpoint,
		Timeout:  cfg.OptimizeTimeout,
	}, files)
	if !tinify.Configured() {
		slog.Warn("TINIFY_API_KEY not set, image optimization disabled")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	moderationMetrics, err := metrics.NewModerationMetrics(registry)
	if err != nil {
		slog.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}

	// Services
	reviewStore := services.NewReviewStore(database.DB)
	accountService := services.NewAccountService(database.DB)
	reviewService := services.NewReviewService(reviewStore, accountService, files, moderationMetrics)

	optimizeOpts := optimizer.FitWithin(cfg.OptimizeWidth, cfg.OptimizeHeight)
	optimizeOpts.Convert = cfg.OptimizeConvert
	pipeline := services.NewModerationPipeline(analyzer, files, reviewStore, tinify, moderationMetrics, services.PipelineConfig{
		AnalyzeTimeout:  cfg.VisionTimeout,
		OptimizeTimeout: cfg.OptimizeTimeout,
		Optimize:        optimizeOpts,
	})

	// Handlers
	healthHandler := handlers.NewHealthHandler(database.DB, cfg.StorageBackend, classifierReady, tinify)
	uploadHandler := handlers.NewUploadHandler(pipeline, files, cfg.MaxFilesPerUpload)
	sandboxHandler := handlers.NewSandboxHandler(uploadHandler, tinify)
	flaggedHandler := handlers.NewFlaggedImageHandler(reviewService)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	if cfg.StorageBackend == "local" {
		app.Static(cfg.PublicURLPrefix, cfg.UploadDir)
	}

	// Routes
	routes.Setup(app, cfg, database.DB, registry, healthHandler, uploadHandler, sandboxHandler, flaggedHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)
	closeStore()

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case "local", "":
		s, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicURLPrefix)
		return s, noop, err
	case "gcs":
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			return nil, noop, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Error("gcs client close error", "error", err)
			}
		}, nil
	case "minio":
		s, err := storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:   cfg.MinioEndpoint,
			Bucket:     cfg.MinioBucket,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			UseSSL:     cfg.MinioUseSSL,
			PublicBase: cfg.MinioPublicURL,
		})
		return s, noop, err
	}
	return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// newClassifier returns a nil classifier when no credentials are available;
// every upload then fails open.
func newClassifier(ctx context.Context, cfg *config.Config) (moderation.Classifier, bool) {
	if cfg.VisionCredentials == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" && cfg.VisionEndpoint == "" {
		slog.Warn("vision credentials not configured, uploads will not be moderated")
		return nil, false
	}
	client, err := vision.NewClient(ctx, vision.Options{
		CredentialsFile: cfg.VisionCredentials,
		Endpoint:        cfg.VisionEndpoint,
		Timeout:         cfg.VisionTimeout,
		MaxLabels:       cfg.VisionMaxLabels,
	})
	if err != nil {
		slog.Warn("vision client unavailable, uploads will not be moderated", "error", err)
		return nil, false
	}
	return client, true
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
