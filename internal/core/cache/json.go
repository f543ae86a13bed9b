package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetOrLoadJSON 泛型读穿透；缓存内容损坏时丢弃并回源
func GetOrLoadJSON[T any](
	c *Cache,
	ctx context.Context,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (*T, error),
) (*T, error) {
	loadBytes := func(ctx context.Context) ([]byte, error) {
		v, e := load(ctx)
		if e != nil {
			return nil, e
		}
		return json.Marshal(v)
	}
	b, err := c.GetOrLoad(ctx, key, ttl, loadBytes)
	if err != nil {
		return nil, err
	}
	var out T
	if e := json.Unmarshal(b, &out); e != nil {
		c.log.Warn("drop undecodable cache entry")
		_ = c.Invalidate(ctx, key)
		return load(ctx)
	}
	return &out, nil
}

// PutJSON 按当前代数回填
func PutJSON[T any](c *Cache, ctx context.Context, key string, v *T, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Put(ctx, key, b, ttl)
	return nil
}
