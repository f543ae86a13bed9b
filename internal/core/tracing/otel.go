// Package tracing 初始化全局 TracerProvider；未启用时保持 otel 默认的 noop 实现。
package tracing

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.uber.org/zap"
)

type Options struct {
	Enabled     bool
	ServiceName string
	Environment string
	Endpoint    string  // OTLP/HTTP 地址；为空时输出到 stdout
	Insecure    bool
	SampleRatio float64 // 0..1
}

// Init 返回 shutdown，进程退出前调用以 flush 未发送的 span
func Init(ctx context.Context, o Options, l *zap.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !o.Enabled {
		return noop, nil
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(o.ServiceName),
		attribute.String("deployment.environment", strings.TrimSpace(o.Environment)),
	))
	if err != nil {
		l.Warn("otel resource init failed (continuing)", zap.Error(err))
	}

	exp, err := exporter(ctx, o)
	if err != nil {
		return noop, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clamp(o.SampleRatio)))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	l.Info("otel tracing initialized", zap.String("service", o.ServiceName), zap.String("endpoint", o.Endpoint))
	return tp.Shutdown, nil
}

func exporter(ctx context.Context, o Options) (sdktrace.SpanExporter, error) {
	if o.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.Endpoint)}
	if o.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func clamp(r float64) float64 {
	switch {
	case r <= 0:
		return 0.1
	case r > 1:
		return 1
	}
	return r
}
