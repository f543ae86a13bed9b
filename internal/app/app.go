// Package app 装配：配置 → 数据库 → 发号器 → 仓储 → 规则 → 缓存 → 服务 → HTTP 模块。
package app

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"student-records/internal/core/cache"
	"student-records/internal/core/config"
	"student-records/internal/core/database"
	"student-records/internal/core/logger"
	"student-records/internal/feature/student"
	"student-records/internal/idseq"
	"student-records/internal/repo"
	"student-records/internal/rule"
	"student-records/internal/service"
	"student-records/internal/transport/http/handler"
	"student-records/internal/transport/http/router"
)

type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Service  *service.StudentService
	Registry *router.Registry

	cache *cache.Cache
}

func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		PrepareStmt:        cfg.DB.PrepareStmt,
		LogWriter:          logger.ToWriter(l.Named("gorm"), zapcore.WarnLevel),
	})
	if err != nil {
		return nil, err
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))
	fail := func(err error) (*App, error) {
		if sqlDB, e := db.DB(); e == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	if cfg.DB.AutoMigrate {
		if err := database.AutoMigrate(db, student.Models()...); err != nil {
			return fail(err)
		}
		l.Info("automigrate done")
	}

	seq := idseq.New(db, l)
	if cfg.Sequence.ReconcileOnStart {
		year := time.Now().Year()
		rctx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout()+5*time.Second)
		last, err := seq.Reconcile(rctx, year)
		cancel()
		if err != nil {
			return fail(err)
		}
		l.Info("student id sequence ready", zap.Int("year", year), zap.Int64("last_value", last))
	}

	studentRepo := repo.NewStudentRepo(db, seq, l)

	ro := rule.DefaultOptions()
	ro.MinAge, ro.MaxAge = cfg.Rules.MinAge, cfg.Rules.MaxAge
	ro.NameMaxLen = cfg.Rules.NameMaxLen
	if cfg.Rules.MobilePattern != "" {
		ro.MobilePattern = cfg.Rules.MobilePattern
	}
	rules, err := rule.Default(ro)
	if err != nil {
		return fail(err)
	}
	validator := rule.NewValidator(studentRepo, rules...)
	l.Info("business rules loaded", zap.Strings("rules", validator.Rules()))

	c := cache.New(newBackend(ctx, cfg, l), cache.Options{
		TTL:         cfg.Cache.TTL(),
		Timeout:     cfg.Cache.Timeout(),
		LoadTimeout: cfg.Store.Timeout(),
	}, l)

	svc := service.NewStudentService(studentRepo, validator, service.NewStudentCache(c), seq, l, service.Options{
		StoreTimeout: cfg.Store.Timeout(),
	})

	return &App{
		Cfg:      cfg,
		Log:      l,
		DB:       db,
		Service:  svc,
		Registry: router.NewRegistry(handler.NewStudentHandler(svc)),
		cache:    c,
	}, nil
}

// newBackend Redis 启动时不可达只告警：读路径自动降级到存储
func newBackend(ctx context.Context, cfg *config.Config, l *zap.Logger) cache.Backend {
	if cfg.Cache.Driver != "redis" {
		l.Info("cache backend: memory")
		return cache.NewMemory().WithGenTTL(cfg.Cache.GenTTL())
	}
	r := cache.NewRedis(cache.RedisOptions{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout(),
		ReadTimeout:  cfg.Redis.ReadTimeout(),
		WriteTimeout: cfg.Redis.WriteTimeout(),
		GenTTL:       cfg.Cache.GenTTL(),
	})
	pctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Ping(pctx); err != nil {
		l.Warn("redis unreachable at startup, reads fall back to store", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		l.Info("cache backend: redis", zap.String("addr", cfg.Redis.Addr))
	}
	return r
}

// Probe /health 使用：数据库可达即健康，缓存故障只降级
func (a *App) Probe(c *gin.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// RouterOptions HTTP 引擎参数
func (a *App) RouterOptions() router.Options {
	h := a.Cfg.App.HTTP
	mode := gin.ReleaseMode
	if a.Cfg.App.Env == "local" {
		mode = gin.DebugMode
	}
	name := ""
	if a.Cfg.Tracing.Enabled {
		name = a.Cfg.App.Name
	}
	return router.Options{
		ServiceName:    name,
		Mode:           mode,
		RPS:            h.RPS,
		Burst:          h.Burst,
		MaxInFlight:    h.MaxInFlight,
		MaxBodyBytes:   h.MaxBodyBytes,
		RequestTimeout: h.RequestTimeout(),
	}
}

func (a *App) Close() error {
	var errs []error
	errs = append(errs, a.cache.Close())
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
