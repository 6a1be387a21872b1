package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/loopline/backend/internal/metrics"
	"github.com/anonto42/loopline/backend/internal/router"
	"github.com/anonto42/loopline/backend/pkg/config"
	"github.com/anonto42/loopline/backend/pkg/firebase"
	"github.com/anonto42/loopline/backend/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize Firebase. Push delivery is optional: without
	// credentials the push sink is simply not registered.
	ctx := context.Background()
	var messagingClient *messaging.Client
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Printf("Firebase unavailable, push notifications disabled: %v", err)
	} else {
		messagingClient = firebaseApp.MessagingClient
	}

	// Register Prometheus collectors
	metrics.Init()

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	app := router.SetupRoutes(e, db.Postgres, db.Redis, messagingClient, cfg)

	// Validator
	e.Validator = validators.NewValidator()

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	// Wait for termination, then drain: stop accepting events, flush
	// the intake workers, stop the sweeps, drain the sink queue.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	app.Engine.Close()
	app.Scheduler.Stop()
	app.Queue.Close()

	log.Println("Shutdown complete.")
}
