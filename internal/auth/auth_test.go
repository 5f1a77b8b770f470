package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackd/internal/models"
)

func TestNewTokenService(t *testing.T) {
	service, err := NewTokenService()
	require.NoError(t, err)
	assert.NotNil(t, service)
	assert.NotEmpty(t, service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)
}

func TestTokenService_GenerateToken(t *testing.T) {
	service, _ := NewTokenService()

	user := &models.User{ID: 42, Login: "testuser"}
	token, err := service.GenerateToken(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestTokenService_ValidateToken(t *testing.T) {
	service, _ := NewTokenService()

	user := &models.User{ID: 42, Login: "testuser"}
	token, err := service.GenerateToken(user)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "testuser", claims.Login)
}

func TestTokenService_ValidateToken_Invalid(t *testing.T) {
	service, _ := NewTokenService()

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_ValidateToken_Expired(t *testing.T) {
	service, _ := NewTokenService()
	service.tokenExp = -time.Hour

	token, err := service.GenerateToken(&models.User{ID: 1, Login: "old"})
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenService_ExtractTokenFromHeader(t *testing.T) {
	service, _ := NewTokenService()

	token, err := service.ExtractTokenFromHeader("Bearer abc123")
	assert.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = service.ExtractTokenFromHeader("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ExtractTokenFromHeader("Basic abc123")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ExtractTokenFromHeader("Bearer ")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
