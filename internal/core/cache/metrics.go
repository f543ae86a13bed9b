package cache

import "github.com/prometheus/client_golang/prometheus"

var cacheOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "cache_operations_total", Help: "Cache operations by result"},
	[]string{"op", "result"},
)

func init() { prometheus.MustRegister(cacheOps) }
