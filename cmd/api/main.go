package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shoppulse-ingest-layer/internal/application"
	"shoppulse-ingest-layer/internal/application/webhook_handlers"
	"shoppulse-ingest-layer/internal/infrastructure/encryption"
	"shoppulse-ingest-layer/internal/infrastructure/locker"
	"shoppulse-ingest-layer/internal/infrastructure/metrics"
	"shoppulse-ingest-layer/internal/infrastructure/pubsub"
	"shoppulse-ingest-layer/internal/infrastructure/repository"
	shopifyinfra "shoppulse-ingest-layer/internal/infrastructure/shopify"
)

const syncLockTTL = 3 * time.Hour

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	// Get configuration from environment
	mongoURI := getenv("MONGODB_URI", "mongodb://localhost:27017")
	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	appURL := getenv("APP_URL", "http://localhost:8080")
	apiVersion := getenv("SHOPIFY_API_VERSION", "2024-10")

	apiKey := os.Getenv("SHOPIFY_API_KEY")
	apiSecret := os.Getenv("SHOPIFY_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		logger.Fatal().Msg("SHOPIFY_API_KEY and SHOPIFY_API_SECRET environment variables are required")
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		logger.Fatal().Msg("ENCRYPTION_KEY environment variable is required")
	}

	scopes := strings.Split(getenv("SHOPIFY_SCOPES", "read_customers,read_products,read_orders"), ",")

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(getenv("MONGODB_DATABASE", "shoppulse"))

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})

	// Initialize infrastructure (implementations)
	encryptionService, err := encryption.NewService(encryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	shopRepo := repository.NewMongoShopRepository(db)
	sessionRepo := repository.NewMongoSessionRepository(db)
	syncStateRepo := repository.NewMongoSyncStateRepository(db)
	rawEventRepo := repository.NewMongoRawEventRepository(db)
	entityStore := repository.NewMongoEntityStore(db, logger)

	platformClient := shopifyinfra.NewClient(apiKey, apiSecret, apiVersion, logger)
	bulkClient := shopifyinfra.NewBulkClient(apiVersion, logger)
	webhookVerifier := shopifyinfra.NewWebhookVerifier(apiSecret)
	syncLocker := locker.NewRedisSyncLocker(redisClient, syncLockTTL)

	pipelineMetrics := metrics.NewDefault()
	progressPubSub := pubsub.NewProgressPubSub(logger)

	// Initialize application services
	credentialService := application.NewCredentialService(shopRepo, encryptionService)
	tracker := application.NewProgressTracker(syncStateRepo, progressPubSub, logger)
	orchestrator := application.NewOrchestrator(
		bulkClient,
		entityStore,
		tracker,
		shopifyinfra.StageQuery,
		pipelineMetrics,
		logger,
	)
	syncService := application.NewSyncService(
		shopRepo,
		credentialService,
		syncLocker,
		orchestrator,
		tracker,
		entityStore,
		logger,
	)
	installService := application.NewInstallService(
		platformClient,
		shopRepo,
		sessionRepo,
		encryptionService,
		scopes,
		appURL+"/auth/callback",
		appURL+"/webhooks/shopify",
		logger,
	)

	// Initialize webhook dispatcher and register handlers
	dispatcher := webhook_handlers.NewDispatcher(rawEventRepo, pipelineMetrics, logger,
		webhook_handlers.NewCustomerHandler(entityStore, logger),
		webhook_handlers.NewProductHandler(entityStore, logger),
		webhook_handlers.NewOrderHandler(entityStore, logger),
		webhook_handlers.NewAppUninstalledHandler(shopRepo, logger),
	)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Public routes
	r.Get("/health", healthHandler(client, redisClient))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// OAuth routes
	r.Get("/auth/shopify", oauthInitHandler(installService, logger))
	r.Get("/auth/callback", oauthCallbackHandler(installService, syncService, logger))

	// Webhook intake
	r.Post("/webhooks/shopify", webhookHandler(webhookVerifier, shopRepo, rawEventRepo, dispatcher, pipelineMetrics, logger))

	// Sync API
	r.Post("/api/v1/sync", triggerSyncHandler(syncService, logger))
	r.Post("/api/v1/sync/{stage}", rerunStageHandler(syncService, logger))
	r.Get("/api/v1/sync/status", syncStatusHandler(syncService, logger))
	r.Get("/api/v1/sync/progress", syncProgressStreamHandler(shopRepo, progressPubSub, logger))
	r.Get("/api/v1/webhooks/status", webhookStatusHandler(shopRepo, rawEventRepo, logger))

	port := getenv("PORT", "8080")

	logger.Info().Str("port", port).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + port + "/swagger/index.html")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// healthHandler reports liveness plus backing-store reachability
func healthHandler(mongoClient *mongo.Client, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "mongo": "ok", "redis": "ok"}
		code := http.StatusOK

		if err := mongoClient.Ping(ctx, nil); err != nil {
			status["status"], status["mongo"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			status["status"], status["redis"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, status)
	}
}
