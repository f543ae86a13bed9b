package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	GenTTL       time.Duration // 代数 key 的存活时间，须远大于一次回源耗时
}

// Redis 共享连接池，go-redis 客户端并发安全
type Redis struct {
	RDB    *redis.Client
	genTTL time.Duration

	beforeExec func() // 测试钩子：WATCH 之后、EXEC 之前
}

func NewRedis(o RedisOptions) *Redis {
	if o.GenTTL <= 0 {
		o.GenTTL = 24 * time.Hour
	}
	return &Redis{
		RDB: redis.NewClient(&redis.Options{
			Addr:         o.Addr,
			Password:     o.Password,
			DB:           o.DB,
			PoolSize:     o.PoolSize,
			DialTimeout:  o.DialTimeout,
			ReadTimeout:  o.ReadTimeout,
			WriteTimeout: o.WriteTimeout,
			MaxRetries:   -1, // 不重试，交给上层降级
		}),
		genTTL: o.GenTTL,
	}
}

func genKey(key string) string { return key + ":gen" }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *Redis) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := r.RDB.Get(ctx, genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetIfGeneration WATCH 代数 key，MULTI 内写值；期间被失效则事务放弃
func (r *Redis) SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	gk := genKey(key)
	stored := false
	err := r.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		if r.beforeExec != nil {
			r.beforeExec()
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, val, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, gk)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate DEL + INCR 代数，MULTI 原子执行
func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	_, err := r.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Del(ctx, k)
			p.Incr(ctx, genKey(k))
			p.Expire(ctx, genKey(k), r.genTTL)
		}
		return nil
	})
	return err
}

func (r *Redis) Ping(ctx context.Context) error { return r.RDB.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.RDB.Close() }
