package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trackfleet/trackd/internal/middleware"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/service"
)

// DeviceHandler handles device management endpoints.
type DeviceHandler struct {
	svc *service.Service
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(svc *service.Service) *DeviceHandler {
	return &DeviceHandler{svc: svc}
}

// GetDevices returns the devices accessible to the caller.
func (h *DeviceHandler) GetDevices(c *gin.Context) {
	devices, err := h.svc.GetDevices(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// AddDevice registers a device owned by the caller.
func (h *DeviceHandler) AddDevice(c *gin.Context) {
	var device models.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := h.svc.AddDevice(c.Request.Context(), middleware.Caller(c), device)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateDevice applies a device update.
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var device models.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	updated, err := h.svc.UpdateDevice(c.Request.Context(), middleware.Caller(c), device)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RemoveDevice removes the caller from the device's owner set, deleting the
// device when no owners remain.
func (h *DeviceHandler) RemoveDevice(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.svc.RemoveDevice(c.Request.Context(), middleware.Caller(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetShare returns the share map of a device.
func (h *DeviceHandler) GetShare(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	share, err := h.svc.GetDeviceShare(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, share)
}

// SaveShare applies a share map to a device.
func (h *DeviceHandler) SaveShare(c *gin.Context) {
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
	if err := h.svc.SaveDeviceShare(c.Request.Context(), middleware.Caller(c), id, share); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
