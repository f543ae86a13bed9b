// Package rule 写入前的业务规则管线：按固定顺序执行全部规则并汇总违例，不短路。
package rule

import (
	"context"
	"time"

	"student-records/internal/domain"
)

// Candidate 待校验的聚合状态（值类型）
type Candidate struct {
	FirstName   string
	LastName    string
	Email       string
	Mobile      string
	DateOfBirth time.Time
	Status      domain.Status
	ExcludeID   uint64 // 更新路径：唯一性检查排除自身
}

// FromStudent 从快照构造候选
func FromStudent(s *domain.Student) Candidate {
	return Candidate{
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		Email:       s.Email,
		Mobile:      s.Mobile,
		DateOfBirth: s.DateOfBirth,
		Status:      s.Status,
		ExcludeID:   s.ID,
	}
}

// Lookup 规则可用的只读存储查询
type Lookup interface {
	ExistsByMobileExcluding(ctx context.Context, mobile string, excludeID uint64) (bool, error)
}

// Rule 具名的纯谓词；error 仅表示存储查询失败
type Rule struct {
	Name  string
	Check func(ctx context.Context, c Candidate, lk Lookup) ([]domain.Violation, error)
}

type Validator struct {
	rules  []Rule
	lookup Lookup
}

func NewValidator(lookup Lookup, rules ...Rule) *Validator {
	return &Validator{rules: rules, lookup: lookup}
}

// Validate 执行全部规则；返回顺序与规则注册顺序一致
func (v *Validator) Validate(ctx context.Context, c Candidate) ([]domain.Violation, error) {
	var out []domain.Violation
	for _, r := range v.rules {
		vs, err := r.Check(ctx, c, v.lookup)
		if err != nil {
			return nil, err
		}
		for i := range vs {
			if vs[i].Rule == "" {
				vs[i].Rule = r.Name
			}
		}
		out = append(out, vs...)
	}
	return out, nil
}

// Rules 当前规则名（调试 / 管理端展示）
func (v *Validator) Rules() []string {
	names := make([]string, 0, len(v.rules))
	for _, r := range v.rules {
		names = append(names, r.Name)
	}
	return names
}

// OnlyDuplicates 违例是否全部来自唯一性冲突
func OnlyDuplicates(vs []domain.Violation) bool {
	if len(vs) == 0 {
		return false
	}
	for _, v := range vs {
		if v.Code != domain.CodeDuplicate {
			return false
		}
	}
	return true
}
