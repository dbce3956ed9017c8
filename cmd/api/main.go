package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/loadpress/loadpress/internal/api"
	"github.com/loadpress/loadpress/internal/apply"
	"github.com/loadpress/loadpress/internal/auth"
	"github.com/loadpress/loadpress/internal/cache"
	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/internal/orchestrator"
	"github.com/loadpress/loadpress/internal/report"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/metrics"
)

func main() {
	// Load .env file if present; real environments set variables directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Skipping .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "loadpress-api",
		Version:     "1.0.0",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.Health(ctx); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}
	cancel()

	log.Println("Database connection established")

	// Run pending migrations
	migrator, err := database.NewMigrator(&cfg.Database, "migrations")
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	migrator.Close()

	// Initialize Redis connection if configured; the API runs without it
	var redis *cache.RedisClient
	if cfg.RedisEnabled() {
		redis, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redis.Close()
		log.Println("Redis connection established")
	}

	// Initialize metrics
	m := metrics.NewMetrics(&metrics.Config{
		Namespace: "loadpress",
		Enabled:   true,
	})

	// Initialize repositories and services
	repos := database.NewRepositories(db)

	authService := auth.NewService(repos.Users, &cfg.Auth, logger)
	applyService := apply.NewService(db, repos.Applies, repos.Tasks, &cfg.Runner, m, logger)
	runner := orchestrator.NewRunner(&cfg.Runner)
	orchService := orchestrator.NewService(repos.Tasks, repos.Results, repos.TaskLogs, runner, &cfg.Runner, m, logger)
	reportService := report.NewService(repos.Tasks, repos.Results, repos.Reports, &cfg.Storage, m, logger)

	// Create API router with all dependencies
	router := api.NewRouter(cfg, db, redis, &api.Services{
		Auth:    authService,
		Applies: applyService,
		Tasks:   orchService,
		Reports: reportService,
	}, m, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting API server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests and running load tests 30 seconds to complete
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := orchService.Stop(ctx); err != nil {
		log.Printf("Orchestrator shutdown incomplete: %v", err)
	}

	log.Println("Server exited")
}
