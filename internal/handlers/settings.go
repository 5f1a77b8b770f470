package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/trackfleet/trackd/internal/middleware"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/service"
)

// SettingsHandler handles application settings and server log endpoints.
type SettingsHandler struct {
	svc *service.Service
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(svc *service.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// GetSettings returns the application settings.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.svc.GetApplicationSettings(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the application settings.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var settings models.ApplicationSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.UpdateApplicationSettings(c.Request.Context(), middleware.Caller(c), settings); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetTrackerServerLog returns the tail of the tracker server log.
func (h *SettingsHandler) GetTrackerServerLog(c *gin.Context) {
	sizeKB := 100
	if raw := c.Query("size_kb"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size_kb"})
			return
		}
		sizeKB = parsed
	}
	tail, err := h.svc.GetTrackerServerLog(c.Request.Context(), middleware.Caller(c), sizeKB)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": tail})
}
