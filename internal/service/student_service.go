// Package service 学生聚合的用例编排：校验 → 发号（仅注册）→ 事务写入 → 失效缓存。
// 版本冲突原样返回给调用方，核心层不自动合并也不自动重试。
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"student-records/internal/core/logger"
	"student-records/internal/domain"
	"student-records/internal/rule"
	"student-records/pkg/utils"
)

var tracer = otel.Tracer("student-records/service")

// SequenceReader 管理端查看发号进度
type SequenceReader interface {
	Current(ctx context.Context, year int) (int64, error)
}

type Options struct {
	StoreTimeout time.Duration
	Now          func() time.Time // 注册年份取自此时钟
}

type CreateInput struct {
	FirstName   string
	LastName    string
	Email       string
	Mobile      string
	DateOfBirth time.Time
	Status      domain.Status // 为空默认 ACTIVE
	Extra       map[string]any
}

// UpdateInput 补丁语义：nil 字段保留当前值
type UpdateInput struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Mobile      *string
	DateOfBirth *time.Time
	Extra       map[string]any
}

type StudentService struct {
	repo    domain.StudentRepository
	rules   *rule.Validator
	statusV *rule.Validator
	cache   *StudentCache
	seq     SequenceReader
	log     *zap.Logger
	o       Options
}

func NewStudentService(
	repo domain.StudentRepository,
	rules *rule.Validator,
	c *StudentCache,
	seq SequenceReader,
	l *zap.Logger,
	o Options,
) *StudentService {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 3 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &StudentService{
		repo:    repo,
		rules:   rules,
		statusV: rule.NewValidator(nil, rule.StatusEnum()),
		cache:   c,
		seq:     seq,
		log:     l.Named("service.student"),
		o:       o,
	}
}

func (s *StudentService) Create(ctx context.Context, in CreateInput) (out *domain.Student, err error) {
	ctx, span := tracer.Start(ctx, "StudentService.Create")
	defer func() { endSpan(span, err); observeWrite("create", err) }()

	st := in.Status
	if st == "" {
		st = domain.StatusActive
	}
	cand := &domain.Student{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Mobile:      in.Mobile,
		DateOfBirth: in.DateOfBirth,
		Status:      st,
		Extra:       in.Extra,
	}
	if err = s.validate(ctx, s.rules, rule.FromStudent(cand)); err != nil {
		return nil, err
	}

	year := s.o.Now().Year()
	sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
	defer cancel()
	out, err = s.repo.Register(sctx, cand, year)
	if err != nil {
		s.logWriteErr(ctx, "create", err,
			zap.String("mobile", utils.MaskMobile(in.Mobile)),
			zap.String("email", utils.MaskEmail(in.Email)))
		return nil, err
	}
	// 新 key 的失效是空操作，但保持写路径一致
	s.invalidate(ctx, out)

	span.SetAttributes(attribute.String("student.id", out.StudentID))
	logger.For(ctx, s.log).Info("student registered",
		zap.Uint64("id", out.ID),
		zap.String("studentId", out.StudentID),
		zap.String("mobile", utils.MaskMobile(out.Mobile)),
		zap.String("email", utils.MaskEmail(out.Email)),
	)
	return out, nil
}

// Update 以调用方持有的 version 为基准；基准已过期直接返回 VersionConflict
func (s *StudentService) Update(ctx context.Context, id uint64, in UpdateInput, version int64) (out *domain.Student, err error) {
	ctx, span := tracer.Start(ctx, "StudentService.Update", trace.WithAttributes(attribute.Int64("student.pk", int64(id))))
	defer func() { endSpan(span, err); observeWrite("update", err) }()

	cur, err := s.current(ctx, id, version)
	if err != nil {
		return nil, err
	}
	next := merge(cur, in)
	if err = s.validate(ctx, s.rules, rule.FromStudent(next)); err != nil {
		return nil, err
	}
	return s.write(ctx, "update", next, version)
}

// ChangeStatus 仅写 status 列，只校验状态枚举。
// 先确认记录存在且版本一致，再校验目标状态。
func (s *StudentService) ChangeStatus(ctx context.Context, id uint64, status domain.Status, version int64) (out *domain.Student, err error) {
	ctx, span := tracer.Start(ctx, "StudentService.ChangeStatus", trace.WithAttributes(
		attribute.Int64("student.pk", int64(id)),
		attribute.String("student.status", string(status)),
	))
	defer func() { endSpan(span, err); observeWrite("status", err) }()

	cur, err := s.current(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if err = s.validate(ctx, s.statusV, rule.Candidate{Status: status}); err != nil {
		return nil, err
	}
	next := *cur
	next.Status = status
	return s.write(ctx, "status", &next, version, "status")
}

// Delete 逻辑删除：状态置为 INACTIVE
func (s *StudentService) Delete(ctx context.Context, id uint64, version int64) (*domain.Student, error) {
	return s.ChangeStatus(ctx, id, domain.StatusInactive, version)
}

// Get 缓存优先；缓存不可用时直接读库
func (s *StudentService) Get(ctx context.Context, id uint64) (*domain.Student, error) {
	ctx, span := tracer.Start(ctx, "StudentService.Get")
	defer span.End()
	return s.cache.ByID(ctx, id, func(ctx context.Context) (*domain.Student, error) {
		sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
		defer cancel()
		return s.repo.FindByID(sctx, id)
	})
}

func (s *StudentService) GetByStudentID(ctx context.Context, sid string) (*domain.Student, error) {
	ctx, span := tracer.Start(ctx, "StudentService.GetByStudentID")
	defer span.End()
	return s.cache.ByStudentID(ctx, sid, func(ctx context.Context) (*domain.Student, error) {
		sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
		defer cancel()
		return s.repo.FindByStudentID(sctx, sid)
	})
}

// List 管理端分页，直接读库
func (s *StudentService) List(ctx context.Context, q domain.ListQuery) ([]domain.Student, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, domain.ValidationFailed([]domain.Violation{{
			Rule: "status_enum", Field: "status", Code: domain.CodeEnum, Message: "unknown status filter",
		}})
	}
	sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
	defer cancel()
	return s.repo.List(sctx, q)
}

// SequenceStatus 某年已发放的最大序号
func (s *StudentService) SequenceStatus(ctx context.Context, year int) (int64, error) {
	sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
	defer cancel()
	n, err := s.seq.Current(sctx, year)
	if err != nil {
		return 0, domain.Unavailable("read sequence", err)
	}
	return n, nil
}

// Year 当前注册年份
func (s *StudentService) Year() int { return s.o.Now().Year() }

// current 从存储读最新快照（不走缓存），并做版本预检
func (s *StudentService) current(ctx context.Context, id uint64, version int64) (*domain.Student, error) {
	sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
	defer cancel()
	cur, err := s.repo.FindByID(sctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Version != version {
		logger.For(ctx, s.log).Info("stale version rejected",
			zap.Uint64("id", id), zap.Int64("expected", version), zap.Int64("actual", cur.Version))
		return nil, domain.VersionConflict(id, version, cur.Version)
	}
	return cur, nil
}

func (s *StudentService) write(ctx context.Context, op string, next *domain.Student, version int64, columns ...string) (*domain.Student, error) {
	sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
	defer cancel()
	out, err := s.repo.Update(sctx, next, version, columns...)
	if err != nil {
		s.logWriteErr(ctx, op, err, zap.Uint64("id", next.ID))
		return nil, err
	}
	s.invalidate(ctx, out)
	logger.For(ctx, s.log).Info("student updated",
		zap.String("op", op),
		zap.Uint64("id", out.ID),
		zap.Int64("version", out.Version),
	)
	return out, nil
}

// validate 违例只有唯一性冲突时返回 DuplicateField，否则返回携带全部违例的 ValidationFailed
func (s *StudentService) validate(ctx context.Context, v *rule.Validator, c rule.Candidate) error {
	sctx, cancel := context.WithTimeout(ctx, s.o.StoreTimeout)
	defer cancel()
	vs, err := v.Validate(sctx, c)
	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.Unavailable("validate student", err)
		}
		return err
	}
	if len(vs) == 0 {
		return nil
	}
	if rule.OnlyDuplicates(vs) {
		return &domain.Error{
			Kind:       domain.KindDuplicateField,
			Msg:        vs[0].Field + " already registered",
			Field:      vs[0].Field,
			Violations: vs,
		}
	}
	return domain.ValidationFailed(vs)
}

func (s *StudentService) invalidate(ctx context.Context, st *domain.Student) {
	// 写已提交：缓存失效失败不影响结果
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), st); err != nil {
		cacheInvalidateFailures.Inc()
		logger.For(ctx, s.log).Error("cache invalidation failed, entry may be stale until ttl",
			zap.Uint64("id", st.ID), zap.Error(err))
	}
}

func (s *StudentService) logWriteErr(ctx context.Context, op string, err error, fields ...zap.Field) {
	l := logger.For(ctx, s.log).With(append(fields, zap.String("op", op), zap.String("kind", string(domain.KindOf(err))))...)
	switch {
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrSequenceExhausted):
		l.Error("student write failed", zap.Error(err))
	default:
		l.Info("student write rejected", zap.Error(err))
	}
}

func merge(cur *domain.Student, in UpdateInput) *domain.Student {
	next := *cur
	if in.FirstName != nil {
		next.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		next.LastName = *in.LastName
	}
	if in.Email != nil {
		next.Email = *in.Email
	}
	if in.Mobile != nil {
		next.Mobile = *in.Mobile
	}
	if in.DateOfBirth != nil {
		next.DateOfBirth = *in.DateOfBirth
	}
	if in.Extra != nil {
		next.Extra = in.Extra
	}
	return &next
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
	}
	span.End()
}
