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

	"student-records/internal/app"
	"student-records/internal/core/config"
	"student-records/internal/core/logger"
	"student-records/internal/core/server"
	"student-records/internal/transport/http/router"
)

// 运维端：学生列表、发号进度、停用学生、/metrics
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
		Service:   cfg.App.Name + "-admin",
		Rotate:    logger.FileRotate(cfg.Log.Rotate),
	})
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	r := router.NewAdminEngine(log, a.RouterOptions(), a.Registry, a.Probe)
	srv := server.BuildServer(server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port), r, 5*time.Second, 10*time.Second, 60*time.Second)
	log.Info("admin api starting",
		zap.String("addr", srv.Addr),
		zap.String("admin_v1", "/admin/v1"),
		zap.String("metrics", "/metrics"),
	)
	if err := server.Run(ctx, srv, log, 10*time.Second); err != nil {
		log.Error("admin api stopped with error", zap.Error(err))
	}
}
