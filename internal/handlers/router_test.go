package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackd/internal/auth"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/service"
	"github.com/trackfleet/trackd/internal/store/memstore"
)

type testEnv struct {
	router *gin.Engine
	svc    *service.Service
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.New(memstore.New())
	tokens, err := auth.NewTokenService()
	require.NoError(t, err)
	return &testEnv{
		router: NewRouter(svc, tokens),
		svc:    svc,
		tokens: tokens,
	}
}

func (e *testEnv) register(t *testing.T, login, password string) string {
	t.Helper()
	w := e.request(t, http.MethodPost, "/api/register", "",
		map[string]string{"login": login, "password": password})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestLoginEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "secret")

	w := e.request(t, http.MethodPost, "/api/login", "",
		map[string]string{"login": "alice", "password": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Login)
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "secret")

	w := e.request(t, http.MethodPost, "/api/login", "",
		map[string]string{"login": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterEndpoint_Conflict(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "secret")

	w := e.request(t, http.MethodPost, "/api/register", "",
		map[string]string{"login": "alice", "password": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthedEndpoint_RequiresToken(t *testing.T) {
	e := newTestEnv(t)

	w := e.request(t, http.MethodGet, "/api/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.request(t, http.MethodGet, "/api/devices", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeviceLifecycleEndpoints(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice", "secret")

	w := e.request(t, http.MethodPost, "/api/devices", token, models.Device{
		Name:     "truck",
		UniqueID: "truck-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var device models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &device))
	require.NotZero(t, device.ID)

	w = e.request(t, http.MethodGet, "/api/devices", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var devices []models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	require.Len(t, devices, 1)

	device.Name = "renamed"
	w = e.request(t, http.MethodPut, "/api/devices", token, device)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.request(t, http.MethodDelete, fmt.Sprintf("/api/devices/%d", device.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.request(t, http.MethodGet, "/api/devices", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	devices = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	assert.Empty(t, devices)
}

func TestDeviceEndpoint_Conflict(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice", "secret")

	w := e.request(t, http.MethodPost, "/api/devices", token, models.Device{Name: "a", UniqueID: "dup"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.request(t, http.MethodPost, "/api/devices", token, models.Device{Name: "b", UniqueID: "dup"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSettingsEndpoint_PublicRead(t *testing.T) {
	e := newTestEnv(t)

	w := e.request(t, http.MethodGet, "/api/settings", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var settings models.ApplicationSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.True(t, settings.RegistrationEnabled)
}

func TestSettingsEndpoint_UpdateForbiddenForNonAdmin(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice", "secret")

	w := e.request(t, http.MethodPut, "/api/settings", token, models.DefaultApplicationSettings())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice", "secret")

	w := e.request(t, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Login)
}

func TestGeoFenceEndpoints(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice", "secret")

	w := e.request(t, http.MethodPost, "/api/geofences", token, models.GeoFence{
		Name:   "depot",
		Type:   models.GeoFenceCircle,
		Radius: 500,
		Points: []models.GeoFencePoint{{Latitude: 51.5, Longitude: -0.12}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var fence models.GeoFence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fence))
	require.NotZero(t, fence.ID)

	w = e.request(t, http.MethodGet, "/api/geofences", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fences []models.GeoFence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fences))
	assert.Len(t, fences, 1)
}

func TestRemoveUserEndpoint_ForbiddenForPlainUser(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice", "secret")

	// Self-registered accounts are managers; demote via the service to get
	// a plain account.
	user, err := e.svc.Login(context.Background(), "alice", "secret", false)
	require.NoError(t, err)
	update := *user
	update.Manager = false
	_, err = e.svc.UpdateUser(context.Background(), user, update)
	require.NoError(t, err)

	w := e.request(t, http.MethodDelete, "/api/users/999", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
