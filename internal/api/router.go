package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/service"
	"github.com/ales-api/internal/wallet"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PoolStats is implemented by stores that expose connection pool counters
type PoolStats interface {
	Stats() sql.DBStats
}

// NewRouter creates and configures the Gin router. health may be nil.
func NewRouter(services *service.Services, registry *wallet.Registry, health HealthChecker, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())
	router.Use(sessions.Sessions(cfg.Session.Name, cookie.NewStore([]byte(cfg.Session.Secret))))
	router.Use(walletSessionMiddleware(registry, log))

	// Handlers
	articleHandler := NewArticleHandler(services, log)
	publishHandler := NewPublishHandler(services, cfg, log)
	sessionHandler := NewSessionHandler(services, log)

	// Health check
	router.GET("/health", healthCheck(health))
	router.GET("/metrics", metricsHandler(services, registry, health))

	// API v1
	v1 := router.Group("/v1")
	{
		// Article endpoints
		articles := v1.Group("/articles")
		{
			articles.GET("", articleHandler.ListArticles)
			articles.GET("/:id", articleHandler.GetArticle)
			articles.POST("/:id/purchase", articleHandler.Purchase)
			articles.POST("/:id/tip", articleHandler.Tip)
		}
		v1.GET("/profile", articleHandler.GetProfile)

		// Publish endpoints
		publish := v1.Group("/publish")
		{
			publish.POST("", publishHandler.Submit)
			publish.GET("/:job_id", publishHandler.GetJob)
			publish.POST("/:job_id/retry", publishHandler.Retry)
		}
		v1.POST("/media", publishHandler.UploadMedia)
		v1.POST("/pins/reconcile", publishHandler.Reconcile)

		// Wallet session endpoints
		session := v1.Group("/session")
		{
			session.GET("", sessionHandler.GetSession)
			session.POST("/events", sessionHandler.ApplyEvent)
			session.GET("/stream", sessionHandler.Stream)
		}
		v1.GET("/wallet", sessionHandler.GetWallet)
	}

	return router
}

// healthCheck returns the health status
func healthCheck(health HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if health != nil {
			ctx, cancel := contextWithTimeout(c, 5*time.Second)
			defer cancel()
			if err := health.HealthCheck(ctx); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "ales-api",
		})
	}
}

// metricsHandler returns publish, pin and session counters, plus the
// database pool when health exposes one
func metricsHandler(services *service.Services, registry *wallet.Registry, health HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := services.Publish.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		stats.Sessions = registry.Len()

		body := gin.H{
			"publish_jobs": stats.PublishJobs,
			"pins":         stats.Pins,
			"sessions":     stats.Sessions,
			"timestamp":    time.Now().Format(time.RFC3339),
		}
		if pool, ok := health.(PoolStats); ok {
			db := pool.Stats()
			body["database"] = gin.H{
				"open_connections": db.OpenConnections,
				"in_use":           db.InUse,
				"idle":             db.Idle,
				"wait_count":       db.WaitCount,
				"wait_duration_ms": db.WaitDuration.Milliseconds(),
			}
		}

		c.JSON(http.StatusOK, body)
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}
