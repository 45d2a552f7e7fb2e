package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/metrics"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/service"
)

// userKey is the gin context key holding the caller's user ID
const userKey = "user_id"

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())
	router.Use(corsMiddleware())
	router.Use(identityMiddleware())

	// Handlers
	commentHandler := NewCommentHandler(services, log)
	formHandler := NewFormHandler(services, log)
	uploadHandler := NewUploadHandler(services, cfg, log)
	importHandler := NewImportHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)

	// Health check
	router.GET("/health", healthCheck(services.Health, log))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Uploaded files, when published under a local path
	if base := strings.TrimRight(cfg.Upload.PublicBaseURL, "/"); strings.HasPrefix(base, "/") && cfg.Upload.Dir != "" {
		router.Static(base, cfg.Upload.Dir)
	}

	// API v1
	v1 := router.Group("/v1")
	{
		// Short JSON calls share the request timeout
		quick := v1.Group("", timeoutMiddleware(cfg.Server.RequestTimeout))
		{
			quick.GET("/discussions/:id/comments", commentHandler.ListComments)
			quick.POST("/discussions/:id/comments", requireUser(), commentHandler.CreateComment)
			quick.PATCH("/comments/:id", requireUser(), commentHandler.UpdateComment)
			quick.DELETE("/comments/:id", requireUser(), commentHandler.DeleteComment)
			quick.POST("/comments/:id/reactions", requireUser(), commentHandler.AddReaction)
			quick.DELETE("/comments/:id/reactions/:type", requireUser(), commentHandler.RemoveReaction)

			quick.POST("/forms/:schema/validate", formHandler.ValidateForm)
			quick.POST("/forms/:schema", requireUser(), formHandler.SubmitForm)
		}

		// Streaming endpoints are bounded by the server write timeout instead
		v1.POST("/uploads", requireUser(), uploadHandler.Upload)
		v1.GET("/discussions/:id/export", exportHandler.StreamExport)
		v1.POST("/discussions/:id/import", requireUser(), importHandler.ImportThread)
	}

	return router
}

// healthCheck returns the health status, including the database when one is wired
func healthCheck(ping func(context.Context) error, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, database, code := "healthy", "ok", http.StatusOK
		if ping == nil {
			database = "none"
		} else {
			ctx, cancel := contextWithTimeout(c, 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				log.Error().Err(err).Msg("Database health check failed")
				status, database, code = "unhealthy", "unreachable", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"database":  database,
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "lms-discussions-api",
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				_, body := apperr.HTTPStatus(nil)
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
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
			Str("user_id", c.GetString(userKey)).
			Msg("Request completed")
	}
}

// metricsMiddleware observes request latency per route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+models.HeaderUserID+", "+models.HeaderConfirmDelete)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// identityMiddleware reads the gateway supplied user ID. A malformed ID is
// rejected outright; a missing one leaves the request anonymous.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(models.HeaderUserID)
		if id == "" {
			c.Next()
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			status, body := apperr.HTTPStatus(apperr.ErrUnauthorized)
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Set(userKey, id)
		c.Next()
	}
}

// requireUser rejects anonymous requests
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(userKey) == "" {
			status, body := apperr.HTTPStatus(apperr.ErrUnauthorized)
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Next()
	}
}

// timeoutMiddleware bounds the request context
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := contextWithTimeout(c, timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}
