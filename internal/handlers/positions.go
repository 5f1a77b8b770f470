package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trackfleet/trackd/internal/middleware"
	"github.com/trackfleet/trackd/internal/service"
)

// PositionHandler handles position query endpoints.
type PositionHandler struct {
	svc *service.Service
}

// NewPositionHandler creates a new position handler.
func NewPositionHandler(svc *service.Service) *PositionHandler {
	return &PositionHandler{svc: svc}
}

// GetPositions returns the filtered position window of a device.
// Query parameters: from, to (RFC 3339), filter (bool).
func (h *PositionHandler) GetPositions(c *gin.Context) {
	deviceID, err := pathID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
		return
	}
	applyFilter := c.Query("filter") == "true"

	positions, err := h.svc.GetPositions(c.Request.Context(), middleware.Caller(c), deviceID, from, to, applyFilter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

// GetLatestPositions returns the last known position per accessible device.
func (h *PositionHandler) GetLatestPositions(c *gin.Context) {
	positions, err := h.svc.GetLatestPositions(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

// GetLatestNonIdlePositions returns the last moving position per accessible
// device.
func (h *PositionHandler) GetLatestNonIdlePositions(c *gin.Context) {
	positions, err := h.svc.GetLatestNonIdlePositions(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}
