package cache

import (
	"context"
	"sync"
	"time"
)

// 每累计这么多次失效做一次全表清扫
const sweepEvery = 1024

// Memory 进程内后端：单实例部署 / 本地开发 / 测试
type Memory struct {
	mu     sync.Mutex
	items  map[string]memEntry
	gens   map[string]memGen
	genTTL time.Duration
	ops    int
	now    func() time.Time
}

type memEntry struct {
	val      []byte
	expireAt time.Time
}

// memGen 与 Redis 的 :gen key 一样带过期时间，过期后视为 0
type memGen struct {
	n        int64
	expireAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items:  map[string]memEntry{},
		gens:   map[string]memGen{},
		genTTL: 24 * time.Hour,
		now:    time.Now,
	}
}

// WithGenTTL 代数的存活时间，须远大于一次回源耗时
func (m *Memory) WithGenTTL(d time.Duration) *Memory {
	if d > 0 {
		m.genTTL = d
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if e.expired(m.now()) {
		delete(m.items, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), e.val...), nil
}

func (m *Memory) Generation(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen(key), nil
}

func (m *Memory) SetIfGeneration(_ context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen(key) != gen {
		return false, nil
	}
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}
	m.items[key] = e
	return true, nil
}

func (m *Memory) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, k := range keys {
		delete(m.items, k)
		m.gens[k] = memGen{n: m.gen(k) + 1, expireAt: now.Add(m.genTTL)}
	}
	m.ops += len(keys)
	if m.ops >= sweepEvery {
		m.ops = 0
		m.sweep(now)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// gen 调用方持锁
func (m *Memory) gen(key string) int64 {
	g, ok := m.gens[key]
	if !ok {
		return 0
	}
	if !m.now().Before(g.expireAt) {
		delete(m.gens, key)
		return 0
	}
	return g.n
}

// sweep 清掉过期的值和代数；调用方持锁
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
		}
	}
	for k, g := range m.gens {
		if !now.Before(g.expireAt) {
			delete(m.gens, k)
		}
	}
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}
