package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(gin.Logger())

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		projects := v1.Group("/projects/:project")
		{
			projects.POST("/collect", handler.CollectProject)
			projects.GET("/snapshots", handler.ListSnapshots)
			projects.GET("/snapshots/latest", handler.GetLatestSnapshot)
			projects.GET("/forecast", handler.GetForecast)
			projects.GET("/history", handler.GetSprintHistory)
		}

		v1.GET("/snapshots/:id", handler.GetSnapshot)
	}

	return router
}
