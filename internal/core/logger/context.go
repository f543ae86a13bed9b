package logger

import (
	"context"

	"go.uber.org/zap"
)

type ridKey struct{}

// WithRequestID 把请求 ID 挂到 ctx 上，供下游日志关联
func WithRequestID(ctx context.Context, rid string) context.Context {
	if rid == "" {
		return ctx
	}
	return context.WithValue(ctx, ridKey{}, rid)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(ridKey{}).(string)
	return rid
}

// For 返回带 rid 字段的 logger；ctx 无请求 ID 时原样返回
func For(ctx context.Context, l *zap.Logger) *zap.Logger {
	if rid := RequestID(ctx); rid != "" {
		return l.With(zap.String("rid", rid))
	}
	return l
}
