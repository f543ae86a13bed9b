package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"student-records/internal/app"
	"student-records/internal/core/config"
	"student-records/internal/core/logger"
	"student-records/internal/core/server"
	"student-records/internal/core/tracing"
	"student-records/internal/transport/http/router"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, cleanup := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		JSON:      cfg.Log.JSON,
		AddCaller: true,
		Service:   cfg.App.Name + "-api",
		Rotate:    logger.FileRotate(cfg.Log.Rotate),
	})
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Env,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.Fatal("tracing init", zap.Error(err))
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	r := router.NewAPIEngine(log, a.RouterOptions(), a.Registry, a.Probe)
	h := cfg.App.HTTP
	srv := server.BuildServer(
		server.Addr(h.Host, h.Port), r,
		time.Duration(h.ReadTimeoutSec)*time.Second,
		time.Duration(h.WriteTimeoutSec)*time.Second,
		time.Duration(h.IdleTimeoutSec)*time.Second,
	)
	log.Info("student api starting", zap.String("addr", srv.Addr), zap.String("api_v1", "/api/v1"))
	if err := server.Run(ctx, srv, log, 10*time.Second); err != nil {
		log.Error("student api stopped with error", zap.Error(err))
	}

	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracing(tctx)
}
