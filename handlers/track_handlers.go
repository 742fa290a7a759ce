// api/handlers/track_handlers.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pulsetrack/api/models"
	"pulsetrack/api/store"
)

type TrackHandlers struct {
	EventStore     *store.EventStore
	AnalyticsStore *store.AnalyticsStore
}

func NewTrackHandlers(events *store.EventStore, analytics *store.AnalyticsStore) *TrackHandlers {
	return &TrackHandlers{
		EventStore:     events,
		AnalyticsStore: analytics,
	}
}

// Ingest accepts {batch, sessionMeta} from the client SDK. The whole batch
// plus the session upsert commit atomically or not at all.
func (h *TrackHandlers) Ingest(c *gin.Context) {
	var req models.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding ingest payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Batch == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch must be an array"})
		return
	}

	for _, event := range req.Batch {
		if !models.IsValidCategory(event.Category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event category: " + event.Category})
			return
		}
		if event.Action == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Event action is required"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	received, err := h.EventStore.IngestBatch(ctx, req.Batch, req.SessionMeta)
	if err != nil {
		log.Printf("Error ingesting event batch: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": received})
}

// Summary serves the windowed aggregate report. The window defaults to the
// trailing 7 days.
func (h *TrackHandlers) Summary(c *gin.Context) {
	days, ok := parseDays(c, 7)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'days' parameter. Must be a positive integer."})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 20*time.Second)
	defer cancel()

	report, err := h.AnalyticsStore.Aggregate(ctx, days)
	if err != nil {
		log.Printf("Error aggregating stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve statistics"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func parseDays(c *gin.Context, fallback int) (int, bool) {
	daysParam := c.Query("days")
	if daysParam == "" {
		return fallback, true
	}
	days, err := strconv.Atoi(daysParam)
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}
