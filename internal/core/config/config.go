package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTP struct {
	Host             string
	Port             int
	ReadTimeoutSec   int
	WriteTimeoutSec  int
	IdleTimeoutSec   int
	RequestTimeoutMs int // 单请求处理上限（timeout 中间件）
	MaxBodyBytes     int64
	RPS              float64 // 每 IP 令牌桶速率
	Burst            int
	MaxInFlight      int64 // 并发上限
}

type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type LogRotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate LogRotate
}

type DB struct {
	Driver             string
	DSN                string
	Username           string // mysql DSN 未带账号时补齐
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
	PrepareStmt        bool
}

type Redis struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	PoolSize       int    `mapstructure:"poolsize"`
	DialTimeoutMs  int    `mapstructure:"dialtimeoutms"`
	ReadTimeoutMs  int    `mapstructure:"readtimeoutms"`
	WriteTimeoutMs int    `mapstructure:"writetimeoutms"`
}

type Cache struct {
	Driver      string // memory | redis
	TTLSec      int
	TimeoutMs   int
	GenTTLHours int
}

type Store struct {
	TimeoutMs int
}

type Rules struct {
	MinAge        int
	MaxAge        int
	MobilePattern string
	NameMaxLen    int
}

type Sequence struct {
	ReconcileOnStart bool
}

type Tracing struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type Config struct {
	App      App
	Log      Log
	DB       DB
	Redis    Redis `mapstructure:"redis"`
	Cache    Cache
	Store    Store
	Rules    Rules
	Sequence Sequence
	Tracing  Tracing
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c Cache) TTL() time.Duration     { return time.Duration(c.TTLSec) * time.Second }
func (c Cache) Timeout() time.Duration { return ms(c.TimeoutMs) }
func (c Cache) GenTTL() time.Duration  { return time.Duration(c.GenTTLHours) * time.Hour }
func (s Store) Timeout() time.Duration { return ms(s.TimeoutMs) }
func (h HTTP) RequestTimeout() time.Duration {
	return ms(h.RequestTimeoutMs)
}

func (r Redis) DialTimeout() time.Duration  { return ms(r.DialTimeoutMs) }
func (r Redis) ReadTimeout() time.Duration  { return ms(r.ReadTimeoutMs) }
func (r Redis) WriteTimeout() time.Duration { return ms(r.WriteTimeoutMs) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "student-records")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 10)
	v.SetDefault("app.http.writetimeoutsec", 15)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.http.requesttimeoutms", 5000)
	v.SetDefault("app.http.maxbodybytes", 1<<20)
	v.SetDefault("app.http.rps", 50)
	v.SetDefault("app.http.burst", 100)
	v.SetDefault("app.http.maxinflight", 512)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:student-records.db?_busy_timeout=5000")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.dialtimeoutms", 200)
	v.SetDefault("redis.readtimeoutms", 100)
	v.SetDefault("redis.writetimeoutms", 100)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttlsec", 600)
	v.SetDefault("cache.timeoutms", 200)
	v.SetDefault("cache.genttlhours", 24)

	v.SetDefault("store.timeoutms", 3000)

	v.SetDefault("rules.minage", 3)
	v.SetDefault("rules.maxage", 100)
	v.SetDefault("rules.mobilepattern", `^[6-9][0-9]{9}$`)
	v.SetDefault("rules.namemaxlen", 64)

	v.SetDefault("sequence.reconcileonstart", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sampleratio", 0.1)
}

// Load 读取 YAML；path 为空时依次取 CONFIG_PATH、./configs/config.local.yaml。
// 同名 APP_ 前缀环境变量覆盖文件值（如 APP_DB_DSN）；工作目录下的 .env 先行加载。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.driver must be memory or redis, got %q", c.Cache.Driver)
	}
	if c.Rules.MinAge < 0 || c.Rules.MaxAge < c.Rules.MinAge {
		return fmt.Errorf("config: rules age range [%d,%d] invalid", c.Rules.MinAge, c.Rules.MaxAge)
	}
	return nil
}
