package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trackfleet/trackd/internal/auth"
	"github.com/trackfleet/trackd/internal/middleware"
	"github.com/trackfleet/trackd/internal/service"
)

// NewRouter wires all endpoints. Role and ownership checks live in the
// service layer; the router only authenticates.
func NewRouter(svc *service.Service, tokens *auth.TokenService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	authHandler := NewAuthHandler(svc, tokens)
	userHandler := NewUserHandler(svc)
	deviceHandler := NewDeviceHandler(svc)
	positionHandler := NewPositionHandler(svc)
	geoFenceHandler := NewGeoFenceHandler(svc)
	settingsHandler := NewSettingsHandler(svc)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.POST("/login", authHandler.Login)
	api.POST("/register", authHandler.Register)
	api.GET("/settings", settingsHandler.GetSettings)

	authed := api.Group("", middleware.RequireAuth(tokens, svc))
	authed.POST("/logout", authHandler.Logout)
	authed.GET("/session", authHandler.Authenticated)

	authed.GET("/users", userHandler.GetUsers)
	authed.POST("/users", userHandler.AddUser)
	authed.PUT("/users", userHandler.UpdateUser)
	authed.DELETE("/users/:id", userHandler.RemoveUser)
	authed.POST("/users/roles", userHandler.SaveRoles)

	authed.GET("/devices", deviceHandler.GetDevices)
	authed.POST("/devices", deviceHandler.AddDevice)
	authed.PUT("/devices", deviceHandler.UpdateDevice)
	authed.DELETE("/devices/:id", deviceHandler.RemoveDevice)
	authed.GET("/devices/:id/share", deviceHandler.GetShare)
	authed.PUT("/devices/:id/share", deviceHandler.SaveShare)

	authed.GET("/devices/:id/positions", positionHandler.GetPositions)
	authed.GET("/positions/latest", positionHandler.GetLatestPositions)
	authed.GET("/positions/latest-non-idle", positionHandler.GetLatestNonIdlePositions)

	authed.GET("/geofences", geoFenceHandler.GetGeoFences)
	authed.POST("/geofences", geoFenceHandler.AddGeoFence)
	authed.PUT("/geofences", geoFenceHandler.UpdateGeoFence)
	authed.DELETE("/geofences/:id", geoFenceHandler.RemoveGeoFence)
	authed.GET("/geofences/:id/share", geoFenceHandler.GetShare)
	authed.PUT("/geofences/:id/share", geoFenceHandler.SaveShare)

	authed.PUT("/settings", settingsHandler.UpdateSettings)
	authed.GET("/server-log", settingsHandler.GetTrackerServerLog)

	return router
}
