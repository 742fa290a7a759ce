// api/handlers/recommendation_handlers.go
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pulsetrack/api/insights"
	"pulsetrack/api/models"
	"pulsetrack/api/store"
)

type RecommendationHandlers struct {
	RecStore  *store.RecommendationStore
	Generator *insights.Generator
}

func NewRecommendationHandlers(recStore *store.RecommendationStore, generator *insights.Generator) *RecommendationHandlers {
	return &RecommendationHandlers{
		RecStore:  recStore,
		Generator: generator,
	}
}

// Generate runs the full insights pipeline: aggregate the trailing window,
// ask the text-generation collaborator for recommendations, persist the run
// and upsert today's snapshot. Nothing is persisted on any failure.
func (h *RecommendationHandlers) Generate(c *gin.Context) {
	days, ok := parseDays(c, 7)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'days' parameter. Must be a positive integer."})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 90*time.Second)
	defer cancel()

	recs, err := h.Generator.Run(ctx, days)
	if err != nil {
		log.Printf("Insights run failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Insights generation failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"generated": len(recs), "recommendations": recs})
}

// List returns stored recommendations, optionally filtered by status.
func (h *RecommendationHandlers) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.IsValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status filter: " + status})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	recs, err := h.RecStore.List(ctx, status)
	if err != nil {
		log.Printf("Error listing recommendations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve recommendations"})
		return
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}

	c.JSON(http.StatusOK, recs)
}

// UpdateStatus applies a status transition. Any transition between valid
// statuses is permitted; unknown values are rejected.
func (h *RecommendationHandlers) UpdateStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recommendation id"})
		return
	}

	var req models.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !models.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + req.Status})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.RecStore.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Recommendation not found"})
			return
		}
		log.Printf("Error updating recommendation %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update recommendation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// Snapshots returns daily metric snapshots in the trailing window, oldest
// first.
func (h *RecommendationHandlers) Snapshots(c *gin.Context) {
	days, ok := parseDays(c, 30)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'days' parameter. Must be a positive integer."})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	snaps, err := h.RecStore.ListSnapshots(ctx, days)
	if err != nil {
		log.Printf("Error listing snapshots: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve snapshots"})
		return
	}
	if snaps == nil {
		snaps = []models.Snapshot{}
	}

	c.JSON(http.StatusOK, snaps)
}
