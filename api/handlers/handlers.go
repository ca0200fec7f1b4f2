package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ai-news-pipeline/api/dto"
	"ai-news-pipeline/coordinator"
	"ai-news-pipeline/featurestore"
	"ai-news-pipeline/pipeline"
	"ai-news-pipeline/repositories"
)

// StatusHandler reports per-state record counts.
func StatusHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := coord.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// ListRecordsHandler lists completed records with their features.
// Query params: since (RFC3339, optional), limit (default 20, max 100).
func ListRecordsHandler(store *featurestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		if sinceStr := c.Query("since"); sinceStr != "" {
			since, err := time.Parse(time.RFC3339, sinceStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
				return
			}
			it, err := store.CompletedSince(c.Request.Context(), since)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			out := make([]dto.RecordDTO, 0, limit)
			for len(out) < limit {
				rec, ok, err := it.Next(c.Request.Context())
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
					return
				}
				if !ok {
					break
				}
				out = append(out, dto.FromCompletedRecord(rec))
			}
			c.JSON(http.StatusOK, out)
			return
		}

		recs, err := store.Latest(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]dto.RecordDTO, 0, len(recs))
		for i := range recs {
			out = append(out, dto.FromCompletedRecord(&recs[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

// GetRecordHandler returns one record with features and its processing
// state.
func GetRecordHandler(store *featurestore.Store, tracker *pipeline.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		recordID := c.Param("id")

		st, err := tracker.Get(c.Request.Context(), recordID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		resp := gin.H{"state": dto.FromProcessingState(st)}
		if st.State == pipeline.StateComplete {
			rec, err := store.GetByID(c.Request.Context(), recordID)
			if err == nil {
				resp["record"] = dto.FromCompletedRecord(rec)
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ListSourcesHandler lists registered sources.
func ListSourcesHandler(sources *repositories.SourceRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := sources.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]dto.SourceDTO, 0, len(list))
		for _, s := range list {
			out = append(out, dto.FromSource(s))
		}
		c.JSON(http.StatusOK, out)
	}
}

// DeactivateSourceHandler soft-deactivates a source.
func DeactivateSourceHandler(sources *repositories.SourceRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
			return
		}
		if err := sources.Deactivate(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
	}
}

// FailRecordHandler marks a record failed by operator action. In-flight
// workers discard their results at the next state check.
func FailRecordHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&body)
		if body.Reason == "" {
			body.Reason = "failed by operator"
		}

		if err := coord.Fail(c.Request.Context(), c.Param("id"), body.Reason); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "failed"})
	}
}

// ReprocessRecordHandler re-enters the summarize stage for a completed
// record.
func ReprocessRecordHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := coord.Reprocess(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "reprocessing"})
	}
}
