package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	apperrors "github.com/pmaffi/jira-flow-metrics/internal/errors"
	"github.com/pmaffi/jira-flow-metrics/internal/service"
)

// Handler handles API requests
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		svc: svc,
	}
}

// CollectProject runs a collection for a project window and returns the
// resulting snapshot
// POST /api/v1/projects/:project/collect
func (h *Handler) CollectProject(c *gin.Context) {
	project := c.Param("project")
	window := parseWindow(c)

	snapshot, err := h.svc.RunCollection(c.Request.Context(), project, window)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": snapshot,
	})
}

// GetLatestSnapshot returns the most recent snapshot for a project
// GET /api/v1/projects/:project/snapshots/latest
func (h *Handler) GetLatestSnapshot(c *gin.Context) {
	project := c.Param("project")

	snapshot, err := h.svc.LatestSnapshot(c.Request.Context(), project)
	if err != nil {
		respondError(c, err)
		return
	}
	if snapshot == nil {
		respondError(c, apperrors.NewNotFoundError("snapshot"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": snapshot,
	})
}

// ListSnapshots returns recent snapshots for a project
// GET /api/v1/projects/:project/snapshots
func (h *Handler) ListSnapshots(c *gin.Context) {
	project := c.Param("project")
	limit := parseIntQuery(c, "limit", 20)

	snapshots, err := h.svc.ListSnapshots(c.Request.Context(), project, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": snapshots,
	})
}

// GetSnapshot returns one snapshot by id
// GET /api/v1/snapshots/:id
func (h *Handler) GetSnapshot(c *gin.Context) {
	id := c.Param("id")

	snapshot, err := h.svc.Snapshot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if snapshot == nil {
		respondError(c, apperrors.NewNotFoundError("snapshot"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": snapshot,
	})
}

// GetForecast returns a completion forecast for a project
// GET /api/v1/projects/:project/forecast
func (h *Handler) GetForecast(c *gin.Context) {
	project := c.Param("project")
	remaining := parseFloatQuery(c, "remaining_hours", 0)

	var deadline time.Time
	if deadlineStr := c.Query("deadline"); deadlineStr != "" {
		parsed, err := time.Parse("2006-01-02", deadlineStr)
		if err != nil {
			respondError(c, apperrors.NewBadRequestError("deadline must be YYYY-MM-DD"))
			return
		}
		deadline = parsed
	}

	forecast, err := h.svc.Forecast(c.Request.Context(), project, remaining, deadline)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": forecast,
	})
}

// GetSprintHistory returns recent sprint records for a project
// GET /api/v1/projects/:project/history
func (h *Handler) GetSprintHistory(c *gin.Context) {
	project := c.Param("project")
	limit := parseIntQuery(c, "limit", 20)

	records, err := h.svc.SprintRecords(c.Request.Context(), project, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": records,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// parseWindow parses the analysis window from query parameters, defaulting
// to the last 30 days
func parseWindow(c *gin.Context) domain.TimeRange {
	now := time.Now().UTC()
	window := domain.TimeRange{
		Start: now.AddDate(0, -1, 0),
		End:   now,
	}

	if startStr := c.Query("start"); startStr != "" {
		if start, err := time.Parse("2006-01-02", startStr); err == nil {
			window.Start = start
		}
	}
	if endStr := c.Query("end"); endStr != "" {
		if end, err := time.Parse("2006-01-02", endStr); err == nil {
			window.End = end
		}
	}
	return window
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// parseFloatQuery parses a float query parameter with a default value
func parseFloatQuery(c *gin.Context, key string, defaultValue float64) float64 {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeAuth:
			status = http.StatusUnauthorized
		case apperrors.ErrCodePermission:
			status = http.StatusForbidden
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case apperrors.ErrCodeConnectTimeout, apperrors.ErrCodeReadTimeout:
			status = http.StatusGatewayTimeout
		case apperrors.ErrCodeMalformed:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
