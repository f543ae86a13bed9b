package domain

import (
	"context"
	"time"
)

// Status 学生状态（核心层不限制流转）
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusInactive    Status = "INACTIVE"
	StatusGraduated   Status = "GRADUATED"
	StatusTransferred Status = "TRANSFERRED"
)

// Statuses 固定顺序，用于校验与错误提示
var Statuses = []Status{StatusActive, StatusInactive, StatusGraduated, StatusTransferred}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Student 学生聚合快照
type Student struct {
	ID          uint64         `json:"id"`
	StudentID   string         `json:"studentId"`
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	Email       string         `json:"email,omitempty"`
	Mobile      string         `json:"mobile"`
	DateOfBirth time.Time      `json:"dateOfBirth"`
	Status      Status         `json:"status"`
	Extra       map[string]any `json:"extra,omitempty"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Violation 一条业务规则违例
type Violation struct {
	Rule    string `json:"rule"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// 违例编码
const (
	CodeRequired  = "REQUIRED"
	CodeFormat    = "FORMAT"
	CodeLength    = "LENGTH"
	CodeRange     = "RANGE"
	CodeEnum      = "ENUM"
	CodeDuplicate = "DUPLICATE"
)

// ListQuery 管理端分页查询
type ListQuery struct {
	Offset int
	Limit  int
	Status Status
}

// StudentRepository 聚合持久化端口；所有写操作在单个事务内完成
type StudentRepository interface {
	Register(ctx context.Context, s *Student, year int) (*Student, error)
	Update(ctx context.Context, s *Student, expectedVersion int64, columns ...string) (*Student, error)
	FindByID(ctx context.Context, id uint64) (*Student, error)
	FindByStudentID(ctx context.Context, studentID string) (*Student, error)
	FindByMobile(ctx context.Context, mobile string) (*Student, error)
	ExistsByMobileExcluding(ctx context.Context, mobile string, excludeID uint64) (bool, error)
	List(ctx context.Context, q ListQuery) ([]Student, int64, error)
}
