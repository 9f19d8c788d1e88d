package handlers

import (
	"fmt"
	"net/http"

	"documentiq-backend/models"
	"documentiq-backend/service"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler handles HTTP requests for usage analytics
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Summary handles GET /api/analytics/summary
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}

	summary, err := h.analytics.Summary(c.Request.Context(), days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ANALYTICS_FAILED",
			fmt.Sprintf("Failed to compute analytics summary: %v", err))
		return
	}

	respondData(c, http.StatusOK, summary)
}

// Volume handles GET /api/analytics/query-volume
func (h *AnalyticsHandler) Volume(c *gin.Context) {
	volume, err := h.analytics.Volume(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ANALYTICS_FAILED",
			fmt.Sprintf("Failed to compute query volume: %v", err))
		return
	}

	respondData(c, http.StatusOK, volume)
}

// TopQueries handles GET /api/analytics/top-queries
func (h *AnalyticsHandler) TopQueries(c *gin.Context) {
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	queries, err := h.analytics.TopQueries(c.Request.Context(), days, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ANALYTICS_FAILED",
			fmt.Sprintf("Failed to compute top queries: %v", err))
		return
	}

	if queries == nil {
		queries = []models.TopQuery{}
	}
	respondData(c, http.StatusOK, gin.H{
		"queries": queries,
		"count":   len(queries),
	})
}

// TopDocuments handles GET /api/analytics/top-documents
func (h *AnalyticsHandler) TopDocuments(c *gin.Context) {
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	docs, err := h.analytics.TopDocuments(c.Request.Context(), days, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ANALYTICS_FAILED",
			fmt.Sprintf("Failed to compute top documents: %v", err))
		return
	}

	if docs == nil {
		docs = []models.DocumentUsage{}
	}
	respondData(c, http.StatusOK, gin.H{
		"documents": docs,
		"count":     len(docs),
	})
}

// ResponseTime handles GET /api/analytics/response-time
func (h *AnalyticsHandler) ResponseTime(c *gin.Context) {
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}

	avg, err := h.analytics.ResponseTime(c.Request.Context(), days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ANALYTICS_FAILED",
			fmt.Sprintf("Failed to compute average response time: %v", err))
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"average_response_time_ms": avg,
	})
}

// DailyMetrics handles GET /api/analytics/daily-metrics
func (h *AnalyticsHandler) DailyMetrics(c *gin.Context) {
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}

	metrics, err := h.analytics.DailyMetrics(c.Request.Context(), days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ANALYTICS_FAILED",
			fmt.Sprintf("Failed to compute daily metrics: %v", err))
		return
	}

	if metrics == nil {
		metrics = []models.DailyMetrics{}
	}
	respondData(c, http.StatusOK, gin.H{
		"metrics": metrics,
		"count":   len(metrics),
	})
}
