package service

import (
	"context"
	"errors"
	"strconv"

	"student-records/internal/core/cache"
	"student-records/internal/domain"
)

// StudentCache 学生快照的缓存视图。一个聚合对应两个 key（主键、学号），写后同时失效。
type StudentCache struct {
	c *cache.Cache
}

func NewStudentCache(c *cache.Cache) *StudentCache { return &StudentCache{c: c} }

func idKey(id uint64) string   { return "student:id:" + strconv.FormatUint(id, 10) }
func sidKey(sid string) string { return "student:sid:" + sid }

func keysOf(s *domain.Student) []string {
	keys := []string{idKey(s.ID)}
	if s.StudentID != "" {
		keys = append(keys, sidKey(s.StudentID))
	}
	return keys
}

type loader func(ctx context.Context) (*domain.Student, error)

func (sc *StudentCache) ByID(ctx context.Context, id uint64, load loader) (*domain.Student, error) {
	return readErr(cache.GetOrLoadJSON(sc.c, ctx, idKey(id), sc.c.TTL(), load))
}

func (sc *StudentCache) ByStudentID(ctx context.Context, sid string, load loader) (*domain.Student, error) {
	return readErr(cache.GetOrLoadJSON(sc.c, ctx, sidKey(sid), sc.c.TTL(), load))
}

// readErr 调用方自己超时或取消（未等到合并回源）时归为 Unavailable
func readErr(s *domain.Student, err error) (*domain.Student, error) {
	if err != nil && domain.KindOf(err) == "" &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, domain.Unavailable("read student", err)
	}
	return s, err
}

// Invalidate 失败时重试一次；仍失败由调用方记录，陈旧窗口以 TTL 为上限
func (sc *StudentCache) Invalidate(ctx context.Context, s *domain.Student) error {
	keys := keysOf(s)
	if err := sc.c.Invalidate(ctx, keys...); err != nil {
		return sc.c.Invalidate(ctx, keys...)
	}
	return nil
}
