package api

import (
	"github.com/gin-gonic/gin"

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

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth    *auth.Service
	Applies *apply.Service
	Tasks   *orchestrator.Service
	Reports *report.Service
}

// NewRouter creates and configures the API router
func NewRouter(cfg *config.Config, db *database.DB, redis *cache.RedisClient, svcs *Services, m *metrics.Metrics, logger *logging.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	router.Use(ErrorHandlingMiddleware())
	router.Use(CORSMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(MetricsMiddleware(m))
	router.Use(RateLimitMiddleware(redis))

	// Health check endpoint (no auth required)
	healthHandler := NewHealthHandler(db, redis)
	router.GET("/health", gin.WrapH(healthHandler))

	// Prometheus metrics endpoint (no auth required)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Generated report files are served directly from the upload directory
	// under the logical /uploads prefix persisted in report rows.
	router.Static(cfg.Storage.LogicalPrefix, cfg.Storage.UploadDir)

	// API version info (no auth required)
	router.GET("/api/v1", func(c *gin.Context) {
		SuccessResponse(c, map[string]interface{}{
			"name":    "LoadPress API",
			"version": "1.0.0",
			"status":  "ok",
		})
	})

	// Create handlers
	authHandler := NewAuthHandler(svcs.Auth)
	applyHandler := NewApplyHandler(svcs.Applies)
	taskHandler := NewTaskHandler(svcs.Tasks)
	reportHandler := NewReportHandler(svcs.Reports)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Authentication routes (no auth required)
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(AuthMiddleware(svcs.Auth))
		{
			// User routes
			user := protected.Group("/user")
			{
				user.GET("/me", authHandler.GetProfile)
				user.PUT("/password", authHandler.ChangePassword)
			}

			// Account administration
			protected.GET("/users", AdminRequired(), authHandler.ListUsers)

			// Apply workflow routes
			applies := protected.Group("/applies")
			{
				applies.POST("", applyHandler.Submit)
				applies.GET("", applyHandler.List)
				applies.GET("/:id", applyHandler.Get)
				applies.POST("/:id/audit", AdminRequired(), applyHandler.Audit)
				applies.GET("/:id/reports", reportHandler.ListByApply)
			}

			// Task routes
			tasks := protected.Group("/tasks")
			{
				tasks.POST("", AdminRequired(), taskHandler.Create)
				tasks.GET("", taskHandler.List)
				tasks.GET("/:id", taskHandler.Get)
				tasks.POST("/:id/start", taskHandler.Start)
				tasks.POST("/:id/cancel", taskHandler.Cancel)
				tasks.POST("/:id/retry", taskHandler.Retry)
				tasks.GET("/:id/logs", taskHandler.GetLogs)
				tasks.GET("/:id/result", taskHandler.GetResult)
				tasks.POST("/:id/reports", reportHandler.Generate)
				tasks.GET("/:id/reports", reportHandler.ListByTask)
			}

			// Report routes
			reports := protected.Group("/reports")
			{
				reports.GET("", AdminRequired(), reportHandler.List)
				reports.GET("/:id", reportHandler.Get)
				reports.DELETE("/:id", AdminRequired(), reportHandler.Delete)
			}
		}
	}

	return router
}
