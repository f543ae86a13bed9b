package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewAPIEngine 面向业务调用方：/api/v1
func NewAPIEngine(l *zap.Logger, o Options, reg *Registry, probe Probe) *gin.Engine {
	r := newEngine(l.Named("http.api"), "api", o, probe)
	reg.MountAPI(r.Group("/api/v1"))
	return r
}
