package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"student-records/internal/core/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	KeyRequestID    = "rid"
)

// RequestID 透传或生成关联 ID，同时写入 gin 上下文与 request context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
