package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"ai-news-pipeline/api/handlers"
	"ai-news-pipeline/coordinator"
	"ai-news-pipeline/db"
	"ai-news-pipeline/featurestore"
	"ai-news-pipeline/pipeline"
	"ai-news-pipeline/repositories"
)

// Deps carries the services the router exposes.
type Deps struct {
	Coordinator  *coordinator.Coordinator
	FeatureStore *featurestore.Store
	Tracker      *pipeline.Tracker
	Sources      *repositories.SourceRepository
}

func New(deps Deps) *gin.Engine {
	r := gin.Default()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		if err := db.Database().RunCommand(context.Background(), bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mongo": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// v1 routes
	api := r.Group("/api/v1")
	{
		api.GET("/status", handlers.StatusHandler(deps.Coordinator))
		api.GET("/records", handlers.ListRecordsHandler(deps.FeatureStore))
		api.GET("/records/:id", handlers.GetRecordHandler(deps.FeatureStore, deps.Tracker))
		api.POST("/records/:id/fail", handlers.FailRecordHandler(deps.Coordinator))
		api.POST("/records/:id/reprocess", handlers.ReprocessRecordHandler(deps.Coordinator))
		api.GET("/sources", handlers.ListSourcesHandler(deps.Sources))
		api.POST("/sources/:id/deactivate", handlers.DeactivateSourceHandler(deps.Sources))
	}

	return r
}
