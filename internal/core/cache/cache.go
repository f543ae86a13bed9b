package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("cache: miss")

// Backend 远端 KV 的最小契约。
// 每个 key 附带一个"代数"：Invalidate 删除值并把代数 +1；
// SetIfGeneration 仅在代数未变时写入，防止慢回源把失效前的旧值写回。
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

type Options struct {
	TTL         time.Duration // 默认条目 TTL
	Timeout     time.Duration // 单次缓存往返上限
	LoadTimeout time.Duration // 合并回源的上限，与任何单个调用方的 ctx 无关
}

// Cache cache-aside 读穿透；后端故障只降级不报错
type Cache struct {
	b   Backend
	o   Options
	log *zap.Logger
	sf  singleflight.Group
}

func New(b Backend, o Options, l *zap.Logger) *Cache {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = 200 * time.Millisecond
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = 5 * time.Second
	}
	return &Cache{b: b, o: o, log: l.Named("cache")}
}

func (c *Cache) TTL() time.Duration { return c.o.TTL }

// Get 命中返回 (val, true)；未命中或后端不可用返回 (nil, false)
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.o.Timeout)
	defer cancel()
	b, err := c.b.Get(cctx, key)
	switch {
	case err == nil:
		cacheOps.WithLabelValues("get", "hit").Inc()
		return b, true
	case errors.Is(err, ErrMiss):
		cacheOps.WithLabelValues("get", "miss").Inc()
	default:
		c.degraded("get", key, err)
	}
	return nil, false
}

// Put 以当前代数写入；与并发失效竞争时放弃写入
func (c *Cache) Put(ctx context.Context, key string, val []byte, ttl time.Duration) {
	gen, ok := c.generation(ctx, key)
	if !ok {
		return
	}
	c.putAt(ctx, key, gen, val, ttl)
}

// Invalidate 删除并推进代数；返回错误供调用方记录（写路径不因此失败）
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, c.o.Timeout)
	defer cancel()
	if err := c.b.Invalidate(cctx, keys...); err != nil {
		c.degraded("invalidate", keys[0], err)
		return err
	}
	cacheOps.WithLabelValues("invalidate", "ok").Add(float64(len(keys)))
	return nil
}

// GetOrLoad 读穿透：先读缓存；未命中则回源并回填。
// 回源前先取代数，singleflight 以 key+代数 合并，失效之后发起的读不会复用失效之前的回源结果。
// 合并的回源脱离发起者的 ctx 运行：发起者取消只让它自己返回，等待同一回源的其他读者不受影响。
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, ok := c.Get(ctx, key); ok {
		return b, nil
	}
	gen, genOK := c.generation(ctx, key)
	if !genOK {
		// 缓存不可用：直接回源，不回填
		return load(ctx)
	}
	ch := c.sf.DoChan(key+"#"+strconv.FormatInt(gen, 10), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.o.LoadTimeout)
		defer cancel()
		b, e := load(lctx)
		if e != nil {
			return nil, e
		}
		c.putAt(lctx, key, gen, b, ttl)
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}

func (c *Cache) Close() error { return c.b.Close() }

func (c *Cache) generation(ctx context.Context, key string) (int64, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.o.Timeout)
	defer cancel()
	gen, err := c.b.Generation(cctx, key)
	if err != nil {
		c.degraded("generation", key, err)
		return 0, false
	}
	return gen, true
}

func (c *Cache) putAt(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.o.TTL
	}
	cctx, cancel := context.WithTimeout(ctx, c.o.Timeout)
	defer cancel()
	stored, err := c.b.SetIfGeneration(cctx, key, gen, val, ttl)
	if err != nil {
		c.degraded("put", key, err)
		return
	}
	if !stored {
		cacheOps.WithLabelValues("put", "stale").Inc()
		return
	}
	cacheOps.WithLabelValues("put", "ok").Inc()
}

func (c *Cache) degraded(op, key string, err error) {
	cacheOps.WithLabelValues(op, "error").Inc()
	c.log.Warn("cache unavailable, falling back to store", zap.String("op", op), zap.String("key", key), zap.Error(err))
}
