package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trackfleet/trackd/internal/middleware"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/service"
)

// GeoFenceHandler handles geo-fence endpoints.
type GeoFenceHandler struct {
	svc *service.Service
}

// NewGeoFenceHandler creates a new geo-fence handler.
func NewGeoFenceHandler(svc *service.Service) *GeoFenceHandler {
	return &GeoFenceHandler{svc: svc}
}

// GetGeoFences returns the fences accessible to the caller.
func (h *GeoFenceHandler) GetGeoFences(c *gin.Context) {
	fences, err := h.svc.GetGeoFences(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fences)
}

// AddGeoFence creates a fence owned by the caller.
func (h *GeoFenceHandler) AddGeoFence(c *gin.Context) {
	var fence models.GeoFence
	if err := c.ShouldBindJSON(&fence); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := h.svc.AddGeoFence(c.Request.Context(), middleware.Caller(c), fence)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateGeoFence applies a fence update.
func (h *GeoFenceHandler) UpdateGeoFence(c *gin.Context) {
	var fence models.GeoFence
	if err := c.ShouldBindJSON(&fence); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	updated, err := h.svc.UpdateGeoFence(c.Request.Context(), middleware.Caller(c), fence)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RemoveGeoFence removes the caller from the fence's owner set, deleting the
// fence when no owners remain.
func (h *GeoFenceHandler) RemoveGeoFence(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.svc.RemoveGeoFence(c.Request.Context(), middleware.Caller(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetShare returns the share map of a fence.
func (h *GeoFenceHandler) GetShare(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	share, err := h.svc.GetGeoFenceShare(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, share)
}

// SaveShare applies a share map to a fence.
func (h *GeoFenceHandler) SaveShare(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var share map[int64]bool
	if err := c.ShouldBindJSON(&share); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.SaveGeoFenceShare(c.Request.Context(), middleware.Caller(c), id, share); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
