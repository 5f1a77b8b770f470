package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trackfleet/trackd/internal/auth"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/service"
)

// CallerContextKey is the gin context key the resolved caller is stored
// under.
const CallerContextKey = "caller"

// RequireAuth validates the bearer token and resolves the caller account
// from the store. Roles are never trusted from the token.
func RequireAuth(tokens *auth.TokenService, svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokens.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		caller, err := svc.UserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown account"})
			return
		}

		c.Set(CallerContextKey, caller)
		c.Next()
	}
}

// Caller returns the authenticated account resolved by RequireAuth.
func Caller(c *gin.Context) *models.User {
	value, ok := c.Get(CallerContextKey)
	if !ok {
		return nil
	}
	caller, _ := value.(*models.User)
	return caller
}
