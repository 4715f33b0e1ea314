package router

import (
	"net/http"

	"github.com/cuongbtq/file-pipeline/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint: database reachability + broker connectivity
	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		if !deps.RabbitClient.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "queue unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "upload-api-service",
		})
	})

	uploadHandler := handler.NewUploadHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		uploads := v1.Group("/uploads")
		{
			// POST /api/v1/uploads - Submit a file for processing
			uploads.POST("", uploadHandler.Upload)

			// GET /api/v1/uploads/:tracking_id - Poll job status
			uploads.GET("/:tracking_id", uploadHandler.GetStatus)
		}
	}

	return r
}
