package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"student-records/internal/domain"
)

var (
	studentWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "student_writes_total", Help: "Student write operations by result kind"},
		[]string{"op", "result"},
	)
	cacheInvalidateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "student_cache_invalidate_failures_total", Help: "Writes whose cache invalidation failed after retry"},
	)
)

func init() {
	prometheus.MustRegister(studentWrites, cacheInvalidateFailures)
}

func observeWrite(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	studentWrites.WithLabelValues(op, result).Inc()
}
