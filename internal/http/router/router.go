package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ahrherrera/mysql-notifier/internal/http/handlers"
	"github.com/ahrherrera/mysql-notifier/internal/http/middleware"
	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/repo"
	"github.com/ahrherrera/mysql-notifier/internal/service"
)

type Deps struct {
	Machines    *service.MachinesService
	Sessions    *service.SessionsService
	Registry    *repo.MachineRepo
	CORSOrigins []string
	Logger      *zap.Logger
}

func Register(r *gin.Engine, d Deps) {
	d.Logger = logging.OrNop(d.Logger)
	// 全局中间件：请求 ID -> 日志/恢复 -> CORS
	r.Use(middleware.RequestID(), middleware.Logger(d.Logger), middleware.Recovery(d.Logger))
	r.Use(middleware.CORS(d.CORSOrigins))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v := handlers.NewValidator()
	api := r.Group("/api", middleware.SecurityHeaders())
	{
		machines := handlers.NewMachinesHandler(d.Machines, v)
		api.GET("/machines", machines.List)
		api.GET("/machines/:id", machines.Get)
		api.DELETE("/machines/:id", machines.Delete)
		api.POST("/machines/:id/check", machines.Check)
		api.POST("/machines/batch-delete", machines.BatchDelete)
		api.POST("/machines/check-all", machines.CheckAll)

		api.POST("/validate", handlers.NewValidateHandler(d.Registry, v).Validate)

		sessions := handlers.NewSessionsHandler(d.Sessions, v)
		api.POST("/sessions", sessions.Open)
		api.GET("/sessions/:id", sessions.Get)
		api.PATCH("/sessions/:id", sessions.Patch)
		api.DELETE("/sessions/:id", sessions.Close)
		api.POST("/sessions/:id/leave", sessions.Leave)
		api.POST("/sessions/:id/test", sessions.Test)
		api.POST("/sessions/:id/commit", sessions.Commit)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})
}
