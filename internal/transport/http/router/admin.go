package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-task-manager/internal/core/auth"
	"go-task-manager/internal/core/server"
	mdw "go-task-manager/internal/transport/http/middleware"
)

// NewAdminEngine 管理端引擎：ginzap 访问日志 + 全分组 admin 角色鉴权
func NewAdminEngine(l *zap.Logger, jwter *auth.JWTer) *gin.Engine {
	r := server.NewRouter(l)

	r.Use(
		mdw.RequestID(),
		mdw.MaxBodyBytes(16<<20),
		mdw.Metrics(),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, "admin"))

	MountAllAdmin(admin)

	return r
}
