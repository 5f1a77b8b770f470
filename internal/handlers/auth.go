package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trackfleet/trackd/internal/auth"
	"github.com/trackfleet/trackd/internal/middleware"
	"github.com/trackfleet/trackd/internal/service"
)

// AuthHandler handles session endpoints.
type AuthHandler struct {
	svc    *service.Service
	tokens *auth.TokenService
}

// NewAuthHandler creates a new session handler.
func NewAuthHandler(svc *service.Service, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens}
}

type loginRequest struct {
	Login          string `json:"login"`
	Password       string `json:"password"`
	PasswordHashed bool   `json:"password_hashed"`
}

// Login verifies credentials and issues a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.svc.Login(c.Request.Context(), req.Login, req.Password, req.PasswordHashed)
	if err != nil {
		abortWithError(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Logout acknowledges session termination. Tokens are stateless; clients
// discard them.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type registerRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register creates a self-service account and issues a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// Authenticated returns the caller's own profile.
func (h *AuthHandler) Authenticated(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.Caller(c))
}
