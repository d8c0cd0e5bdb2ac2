package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"blobvault/internal/config"
	"blobvault/internal/database"
	"blobvault/internal/database/migration"
	handlers "blobvault/internal/http/handler"
	"blobvault/internal/http/middleware"
	"blobvault/internal/otel"
	"blobvault/internal/ratelimit"
	"blobvault/internal/repository/postgres"
	"blobvault/internal/service"
	"blobvault/internal/store"
	"blobvault/internal/validate"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.UTC

	ctx := context.Background()

	// Tracing is optional; the exporter degrades to noop when unreachable
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	st, err := newStore(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize blob storage: %v", err)
	}

	// Initialize repositories and services
	blobRepo := postgres.NewBlobPostgres(db)
	keyRepo := postgres.NewAPIKeyPostgres(db)

	blobSvc := service.NewBlobService(st, blobRepo, service.BlobServiceConfig{
		Limits: validate.Limits{
			MaxDepth:     cfg.Validation.MaxDepth,
			MaxKeys:      cfg.Validation.MaxKeys,
			MaxStringLen: cfg.Validation.MaxStringLen,
		},
		MaxUploadSize: cfg.Storage.MaxUploadSize,
		Retention:     cfg.Storage.RetentionCount,
	})
	keySvc := service.NewAPIKeyService(keyRepo, cfg.Auth.BcryptCost)

	registry := prometheus.NewRegistry()
	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	rateLimiter, err := middleware.NewRateLimitMiddleware(ratelimit.New(cfg.RateLimit), registry)
	if err != nil {
		log.Fatalf("failed to register rate limiter: %v", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.Storage.MaxUploadSize) + 1024*1024, // multipart overhead
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(promMiddleware.Handler())
	app.Use(rateLimiter.Handler())

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, handlers.RouterDeps{
		DB:       db,
		Blobs:    blobSvc,
		Keys:     keySvc,
		Auth:     middleware.APIKeyAuth(keySvc),
		Metrics:  promMiddleware,
		Gatherer: registry,
		Compress: cfg.Storage.Compress,
	})

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// newStore selects the storage backend: the local content directory by
// default, or an S3-compatible bucket when STORAGE_BACKEND=s3.
func newStore(cfg config.StorageConfig) (store.Store, error) {
	if cfg.Backend == "s3" {
		return store.NewMinIO(cfg.MinIO)
	}
	return store.NewDisk(cfg.Dir)
}
