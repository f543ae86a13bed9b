package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewAdminEngine 运维端：/admin/v1 与 /metrics，默认只监听本机
func NewAdminEngine(l *zap.Logger, o Options, reg *Registry, probe Probe) *gin.Engine {
	r := newEngine(l.Named("http.admin"), "admin", o, probe)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	reg.MountAdmin(r.Group("/admin/v1"))
	return r
}
