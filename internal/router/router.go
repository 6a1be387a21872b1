package router

import (
	"log"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/loopline/backend/internal/engine"
	"github.com/anonto42/loopline/backend/internal/handlers"
	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/middleware"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/internal/sinks"
	"github.com/anonto42/loopline/backend/pkg/config"
	"github.com/anonto42/loopline/backend/pkg/observability"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// App bundles the long-running components so main can shut them down
// in order: intake first, then the scheduler, then the sink queue.
type App struct {
	Engine    *engine.Engine
	Scheduler *engine.Scheduler
	Queue     *sinks.Queue
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, redisClient *redis.Client, messagingClient *messaging.Client, cfg *config.Config) *App {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.NotificationPreferences{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	rootLog := observability.NewLogger("notification-engine")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// --- Initialize Repositories ---
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	preferenceRepo := repositories.NewPostgresPreferenceRepository(pgdb)
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	directory := repositories.NewUserDirectory(userRepo)

	// --- Live fan-out hub ---
	hub := live.NewHub(0, rootLog.Named("hub"))

	// --- Sink queue with the configured delivery channels ---
	queue := sinks.NewQueue(cfg.SinkWorkers, cfg.SinkQueueBuffer, rootLog.Named("sinks"))
	if cfg.ResendAPIKey != "" {
		queue.Register(sinks.NewEmailSink(cfg.ResendAPIKey, cfg.FromEmail, directory))
		log.Println("Email sink registered.")
	} else {
		log.Println("RESEND_API_KEY not set; email sink disabled.")
	}
	if messagingClient != nil {
		queue.Register(sinks.NewPushSink(messagingClient, directory))
		log.Println("Push sink registered.")
	} else {
		log.Println("Firebase messaging unavailable; push sink disabled.")
	}
	queue.Start()

	// --- Engine components ---
	resolver := engine.NewPreferenceResolver(preferenceRepo, rootLog.Named("preferences"))
	quota := engine.NewQuotaGuard(engine.NewRedisCounterStore(redisClient), engine.DefaultLimits(), rootLog.Named("quota"))
	aggregator := engine.NewAggregator(notificationRepo, rootLog.Named("aggregator"))
	tracker := engine.NewReadStateTracker(notificationRepo, engine.NewRedisCountCache(redisClient), hub, rootLog.Named("readstate"))
	dispatcher := engine.NewDispatcher(notificationRepo, hub, queue, tracker, rootLog.Named("dispatcher"))

	eng := engine.New(resolver, quota, aggregator, dispatcher, tracker,
		notificationRepo, preferenceRepo, hub, rootLog.Named("engine"),
		engine.Config{Workers: cfg.EngineWorkers})

	scheduler := engine.NewScheduler(notificationRepo, dispatcher, resolver, tracker, hub,
		rootLog.Named("scheduler"), cfg.SweepInterval, cfg.ReadRetention)
	scheduler.Start()

	// --- Internal routes (service-to-service event intake) ---
	internalGroup := e.Group("/internal")
	eventHandler := handlers.NewEventHandler(eng)
	eventHandler.RegisterEventRoutes(internalGroup)
	log.Println("Event intake routes configured.")

	// --- Admin routes (retention and stats) ---
	adminGroup := e.Group("/admin")
	adminHandler := handlers.NewAdminHandler(eng)
	adminHandler.RegisterAdminRoutes(adminGroup)
	log.Println("Admin routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(eng)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	// Live websocket route
	wsHandler := handlers.NewWSHandler(hub, rootLog.Named("ws"))
	wsHandler.RegisterWSRoutes(api)
	log.Println("WebSocket routes configured.")

	log.Println("All routes configured.")

	return &App{Engine: eng, Scheduler: scheduler, Queue: queue}
}
