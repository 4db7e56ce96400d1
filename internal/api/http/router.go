package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rdm-project/rdm-server/internal/api/http/handler"
	"github.com/rdm-project/rdm-server/internal/api/http/middleware"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/devices"
	"github.com/rdm-project/rdm-server/internal/permissions"
	"github.com/rdm-project/rdm-server/internal/sessions"
	"github.com/rdm-project/rdm-server/internal/store"
	"github.com/rdm-project/rdm-server/internal/users"
)

type Services struct {
	Store       *store.Store
	Auth        *auth.Service
	Users       *users.Service
	Devices     *devices.Service
	Permissions *permissions.Service
	Broker      *sessions.Broker
	JWTSecret   string
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	authHandler := handler.NewAuthHandler(srvs.Auth)
	engine.POST("/api/auth/login", authHandler.Login)

	authed := engine.Group("/api", middleware.JWTAuth(srvs.JWTSecret))
	authed.GET("/auth/me", authHandler.Me)

	deviceHandler := handler.NewDeviceHandler(srvs.Devices)
	authed.GET("/devices", deviceHandler.List)
	authed.GET("/devices/:id", deviceHandler.Get)

	connHandler := handler.NewConnectionHandler(srvs.Broker)
	authed.POST("/connections/initiate", connHandler.Initiate)
	authed.POST("/connections/:id/end", connHandler.End)
	authed.GET("/connections/logs", connHandler.Logs)
	authed.GET("/devices/:id/logs", connHandler.DeviceLogs)

	admin := authed.Group("", middleware.RequireAdmin())
	admin.POST("/devices", deviceHandler.Create)
	admin.PUT("/devices/:id", deviceHandler.Update)
	admin.DELETE("/devices/:id", deviceHandler.Delete)

	userHandler := handler.NewUserHandler(srvs.Users)
	admin.POST("/users", userHandler.Create)
	admin.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	admin.PUT("/users/:id", userHandler.Update)

	grantHandler := handler.NewGrantHandler(srvs.Permissions)
	admin.POST("/devices/:id/permissions/users", grantHandler.GrantDirect)
	admin.DELETE("/devices/:id/permissions/users/:userId", grantHandler.RevokeDirect)
	admin.POST("/devices/:id/permissions/groups", grantHandler.GrantGroup)
	admin.DELETE("/devices/:id/permissions/groups/:groupId", grantHandler.RevokeGroup)
	admin.POST("/groups", grantHandler.CreateGroup)
	admin.POST("/groups/:id/members", grantHandler.AddMember)
	admin.DELETE("/groups/:id/members/:userId", grantHandler.RemoveMember)

	auditHandler := handler.NewAuditHandler(srvs.Store)
	admin.GET("/audit/logs", auditHandler.List)
}
