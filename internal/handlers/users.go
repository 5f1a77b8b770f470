package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/middleware"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/service"
)

// UserHandler handles user management endpoints.
type UserHandler struct {
	svc *service.Service
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetUsers returns the users visible to the caller.
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.svc.GetUsers(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type userRequest struct {
	models.User
	Password string `json:"password"`
}

// AddUser creates an account managed by the caller.
func (h *UserHandler) AddUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.User.Password = req.Password

	user, err := h.svc.AddUser(c.Request.Context(), middleware.Caller(c), req.User)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser applies a user update.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.User.Password = req.Password

	user, err := h.svc.UpdateUser(c.Request.Context(), middleware.Caller(c), req.User)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// RemoveUser deletes an account.
func (h *UserHandler) RemoveUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.svc.RemoveUser(c.Request.Context(), middleware.Caller(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SaveRoles applies role assignments.
func (h *UserHandler) SaveRoles(c *gin.Context) {
	var users []models.User
	if err := c.ShouldBindJSON(&users); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.SaveRoles(c.Request.Context(), middleware.Caller(c), users); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, trace.BadParameter("invalid id %q", c.Param("id"))
	}
	return id, nil
}
