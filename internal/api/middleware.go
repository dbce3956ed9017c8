package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loadpress/loadpress/internal/auth"
	"github.com/loadpress/loadpress/internal/cache"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/metrics"
	"github.com/loadpress/loadpress/pkg/security"
	"github.com/loadpress/loadpress/pkg/types"
)

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return security.CORSMiddleware(security.DefaultHeadersConfig())
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return security.HeadersMiddleware(security.DefaultHeadersConfig())
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	})
}

// LoggingMiddleware provides structured request logging
func LoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if logger == nil {
			return
		}
		logger.WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"request_id":  getRequestID(c),
		}).Info("http request")
	})
}

// ErrorHandlingMiddleware handles panics and errors
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return gin.Recovery()
}

// MetricsMiddleware records request counts and latencies
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return m.PrometheusMiddleware()
}

// AuthMiddleware validates JWT tokens and sets user context
func AuthMiddleware(authSvc *auth.Service) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			UnauthorizedResponse(c, "Authorization header is required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			UnauthorizedResponse(c, "Authorization header must be in format 'Bearer <token>'")
			c.Abort()
			return
		}

		claims, err := authSvc.ValidateToken(tokenParts[1])
		if err != nil {
			UnauthorizedResponse(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		c.Next()
	})
}

// AdminRequired rejects requests from non-admin users. Must run after
// AuthMiddleware.
func AdminRequired() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if currentRole(c) != types.RoleAdmin {
			ForbiddenResponse(c, "administrator access required")
			c.Abort()
			return
		}
		c.Next()
	})
}

// RateLimitMiddleware provides Redis-based rate limiting. A nil client
// disables limiting.
func RateLimitMiddleware(redis *cache.RedisClient) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if redis == nil {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		key := fmt.Sprintf("rate_limit:%s", clientIP)

		ctx := c.Request.Context()
		count, err := redis.Client().Get(ctx, key).Int()
		if err != nil && err.Error() != "redis: nil" {
			// Redis error, allow request rather than fail closed
			c.Next()
			return
		}

		// Rate limit: 100 requests per minute per IP
		limit := 100
		window := 60 // seconds

		if count >= limit {
			ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
			c.Abort()
			return
		}

		pipe := redis.Client().Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Duration(window)*time.Second)
		_, _ = pipe.Exec(ctx)

		c.Next()
	})
}

func currentUserID(c *gin.Context) int64 {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

func currentRole(c *gin.Context) string {
	if v, exists := c.Get("role"); exists {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func isAdmin(c *gin.Context) bool {
	return currentRole(c) == types.RoleAdmin
}
