package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-records/internal/core/database"
	"student-records/internal/domain"
	"student-records/internal/feature/student"
)

// IDIssuer 在注册事务内发号（idseq.Sequencer）
type IDIssuer interface {
	Next(tx *gorm.DB, year int) (string, error)
}

type StudentRepo struct {
	db  *gorm.DB
	ids IDIssuer
	log *zap.Logger
}

func NewStudentRepo(db *gorm.DB, ids IDIssuer, l *zap.Logger) *StudentRepo {
	return &StudentRepo{db: db, ids: ids, log: l.Named("repo.student")}
}

var _ domain.StudentRepository = (*StudentRepo)(nil)

// 可更新列（domain 字段 → 列名）
var updatableColumns = map[string]string{
	"firstName":   "first_name",
	"lastName":    "last_name",
	"email":       "email",
	"mobile":      "mobile",
	"dateOfBirth": "date_of_birth",
	"status":      "status",
	"extra":       "extra",
}

// Register 发号 + 插入在同一事务；version 固定为 0
func (r *StudentRepo) Register(ctx context.Context, s *domain.Student, year int) (*domain.Student, error) {
	m := fromDomain(s)
	m.ID = 0
	m.Version = 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sid, err := r.ids.Next(tx, year)
		if err != nil {
			return err
		}
		m.StudentID = sid
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, r.mapWriteErr("register student", err)
	}
	return toDomain(m), nil
}

// Update 条件更新：WHERE id = ? AND version = ?，成功则 version+1。
// columns 为空表示写全部可更新列，否则只写指定字段（如状态变更）。
func (r *StudentRepo) Update(ctx context.Context, s *domain.Student, expectedVersion int64, columns ...string) (*domain.Student, error) {
	sets, err := updateSet(fromDomain(s), columns)
	if err != nil {
		return nil, err
	}
	sets["version"] = gorm.Expr("version + 1")
	sets["updated_at"] = time.Now().UTC()

	var out student.StudentModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&student.StudentModel{}).
			Where("id = ? AND version = ?", s.ID, expectedVersion).
			Updates(sets)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 区分不存在与版本过期
			var cur student.StudentModel
			if err := tx.Select("id", "version").Where("id = ?", s.ID).Take(&cur).Error; err != nil {
				if database.IsNotFound(err) {
					return domain.NotFound("student")
				}
				return err
			}
			return domain.VersionConflict(s.ID, expectedVersion, cur.Version)
		}
		return tx.Where("id = ?", s.ID).Take(&out).Error
	})
	if err != nil {
		return nil, r.mapWriteErr("update student", err)
	}
	return toDomain(&out), nil
}

func (r *StudentRepo) FindByID(ctx context.Context, id uint64) (*domain.Student, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *StudentRepo) FindByStudentID(ctx context.Context, studentID string) (*domain.Student, error) {
	return r.findOne(ctx, "student_id = ?", studentID)
}

func (r *StudentRepo) FindByMobile(ctx context.Context, mobile string) (*domain.Student, error) {
	return r.findOne(ctx, "mobile = ?", mobile)
}

// ExistsByMobileExcluding excludeID 为 0 表示不排除（注册路径）
func (r *StudentRepo) ExistsByMobileExcluding(ctx context.Context, mobile string, excludeID uint64) (bool, error) {
	q := r.db.WithContext(ctx).Model(&student.StudentModel{}).Where("mobile = ?", mobile)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Limit(1).Count(&n).Error; err != nil {
		return false, domain.Unavailable("check mobile", err)
	}
	return n > 0, nil
}

func (r *StudentRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.Student, int64, error) {
	tx := r.db.WithContext(ctx).Model(&student.StudentModel{})
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, domain.Unavailable("count students", err)
	}
	var ms []student.StudentModel
	if err := tx.Session(&gorm.Session{}).Order("id DESC").Offset(q.Offset).Limit(q.Limit).Find(&ms).Error; err != nil {
		return nil, 0, domain.Unavailable("list students", err)
	}
	out := make([]domain.Student, 0, len(ms))
	for i := range ms {
		out = append(out, *toDomain(&ms[i]))
	}
	return out, total, nil
}

func (r *StudentRepo) findOne(ctx context.Context, cond string, arg any) (*domain.Student, error) {
	var m student.StudentModel
	err := r.db.WithContext(ctx).Where(cond, arg).Take(&m).Error
	if database.IsNotFound(err) {
		return nil, domain.NotFound("student")
	}
	if err != nil {
		return nil, domain.Unavailable("find student", err)
	}
	return toDomain(&m), nil
}

// mapWriteErr 核心错误原样返回；唯一冲突 → DuplicateField；其余视为存储不可用
func (r *StudentRepo) mapWriteErr(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if constraint, ok := database.UniqueViolation(err); ok {
		field := "mobile"
		if strings.Contains(constraint, "student_id") {
			field = "studentId"
		}
		r.log.Warn("unique constraint hit at write", zap.String("op", op), zap.String("field", field))
		return domain.DuplicateField(field, err)
	}
	return domain.Unavailable(op, err)
}

func updateSet(m *student.StudentModel, fields []string) (map[string]any, error) {
	all := map[string]any{
		"first_name":    m.FirstName,
		"last_name":     m.LastName,
		"email":         m.Email,
		"mobile":        m.Mobile,
		"date_of_birth": m.DateOfBirth,
		"status":        m.Status,
		"extra":         m.Extra,
	}
	if len(fields) == 0 {
		return all, nil
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		col, ok := updatableColumns[f]
		if !ok {
			return nil, errors.New("repo: field not updatable: " + f)
		}
		out[col] = all[col]
	}
	return out, nil
}

func fromDomain(s *domain.Student) *student.StudentModel {
	return &student.StudentModel{
		ID:          s.ID,
		StudentID:   s.StudentID,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		Email:       s.Email,
		Mobile:      s.Mobile,
		DateOfBirth: s.DateOfBirth,
		Status:      string(s.Status),
		Extra:       s.Extra,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toDomain(m *student.StudentModel) *domain.Student {
	return &domain.Student{
		ID:          m.ID,
		StudentID:   m.StudentID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		Mobile:      m.Mobile,
		DateOfBirth: m.DateOfBirth,
		Status:      domain.Status(m.Status),
		Extra:       m.Extra,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
