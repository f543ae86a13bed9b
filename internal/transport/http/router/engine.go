package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"student-records/internal/core/server"
	mdw "student-records/internal/transport/http/middleware"
)

// Options 两个引擎共用的中间件参数
type Options struct {
	ServiceName    string
	Mode           string
	RPS            float64
	Burst          int
	MaxInFlight    int64
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.RPS <= 0 {
		o.RPS = 50
	}
	if o.Burst <= 0 {
		o.Burst = 100
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 512
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	return o
}

// Probe 健康检查依赖（数据库 ping 等）；为 nil 只返回存活
type Probe func(*gin.Context) error

func newEngine(l *zap.Logger, engine string, o Options, probe Probe) *gin.Engine {
	o = o.withDefaults()
	r := server.NewRouter(l, server.Options{Name: o.ServiceName, Mode: o.Mode})
	r.Use(
		mdw.RequestID(),
		mdw.AccessLog(l),
		mdw.Metrics(engine),
		mdw.Recovery(l),
		mdw.RateLimitPerIP(rate.Limit(o.RPS), o.Burst, 10*time.Minute),
		mdw.ConcurrencyLimit(o.MaxInFlight),
		mdw.MaxBodyBytes(o.MaxBodyBytes),
		mdw.Timeout(o.RequestTimeout),
	)
	r.GET("/health", func(c *gin.Context) {
		if probe != nil {
			if err := probe(c); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": 0, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": 1})
	})
	return r
}
