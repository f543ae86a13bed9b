package rule

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"student-records/internal/domain"
)

// 与 gin binding 同一套校验器，并发安全
var tags = validator.New()

// Options 规则参数（来自 config.rules）
type Options struct {
	MinAge        int
	MaxAge        int
	MobilePattern string
	NameMaxLen    int
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		MinAge:        3,
		MaxAge:        100,
		MobilePattern: `^[6-9][0-9]{9}$`,
		NameMaxLen:    64,
		Now:           time.Now,
	}
}

// Default 默认规则管线；顺序即错误输出顺序
func Default(o Options) ([]Rule, error) {
	mobileRe, err := regexp.Compile(o.MobilePattern)
	if err != nil {
		return nil, fmt.Errorf("rule: bad mobile pattern: %w", err)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return []Rule{
		RequiredFields(),
		NameLength(o.NameMaxLen),
		MobileFormat(mobileRe),
		EmailFormat(),
		StatusEnum(),
		AgeRange(o.MinAge, o.MaxAge, o.Now),
		MobileUnique(mobileRe),
	}, nil
}

func RequiredFields() Rule {
	return Rule{Name: "required_fields", Check: func(_ context.Context, c Candidate, _ Lookup) ([]domain.Violation, error) {
		var vs []domain.Violation
		req := func(field, val string) {
			if strings.TrimSpace(val) == "" {
				vs = append(vs, domain.Violation{Field: field, Code: domain.CodeRequired, Message: field + " is required"})
			}
		}
		req("firstName", c.FirstName)
		req("lastName", c.LastName)
		req("mobile", c.Mobile)
		if c.DateOfBirth.IsZero() {
			vs = append(vs, domain.Violation{Field: "dateOfBirth", Code: domain.CodeRequired, Message: "dateOfBirth is required"})
		}
		return vs, nil
	}}
}

func NameLength(max int) Rule {
	return Rule{Name: "name_length", Check: func(_ context.Context, c Candidate, _ Lookup) ([]domain.Violation, error) {
		if max <= 0 {
			return nil, nil
		}
		var vs []domain.Violation
		for _, f := range []struct{ field, val string }{{"firstName", c.FirstName}, {"lastName", c.LastName}} {
			if n := len([]rune(f.val)); n > max {
				vs = append(vs, domain.Violation{
					Field: f.field, Code: domain.CodeLength,
					Message: fmt.Sprintf("%s must be at most %d characters (got %d)", f.field, max, n),
				})
			}
		}
		return vs, nil
	}}
}

func MobileFormat(re *regexp.Regexp) Rule {
	return Rule{Name: "mobile_format", Check: func(_ context.Context, c Candidate, _ Lookup) ([]domain.Violation, error) {
		if c.Mobile == "" || re.MatchString(c.Mobile) {
			return nil, nil
		}
		return []domain.Violation{{Field: "mobile", Code: domain.CodeFormat, Message: "mobile must be a 10 digit number"}}, nil
	}}
}

func EmailFormat() Rule {
	return Rule{Name: "email_format", Check: func(_ context.Context, c Candidate, _ Lookup) ([]domain.Violation, error) {
		if c.Email == "" || tags.Var(c.Email, "email") == nil {
			return nil, nil
		}
		return []domain.Violation{{Field: "email", Code: domain.CodeFormat, Message: "email format is invalid"}}, nil
	}}
}

func StatusEnum() Rule {
	return Rule{Name: "status_enum", Check: func(_ context.Context, c Candidate, _ Lookup) ([]domain.Violation, error) {
		if c.Status.Valid() {
			return nil, nil
		}
		return []domain.Violation{{
			Field: "status", Code: domain.CodeEnum,
			Message: fmt.Sprintf("status must be one of %v", domain.Statuses),
		}}, nil
	}}
}

func AgeRange(min, max int, now func() time.Time) Rule {
	return Rule{Name: "age_range", Check: func(_ context.Context, c Candidate, _ Lookup) ([]domain.Violation, error) {
		if c.DateOfBirth.IsZero() {
			return nil, nil
		}
		age := AgeAt(c.DateOfBirth, now())
		if age < min || age > max {
			return []domain.Violation{{
				Field: "dateOfBirth", Code: domain.CodeRange,
				Message: fmt.Sprintf("age must be between %d and %d (got %d)", min, max, age),
			}}, nil
		}
		return nil, nil
	}}
}

// MobileUnique 需要一次存储查询；格式不合法时跳过
func MobileUnique(re *regexp.Regexp) Rule {
	return Rule{Name: "mobile_unique", Check: func(ctx context.Context, c Candidate, lk Lookup) ([]domain.Violation, error) {
		if lk == nil || c.Mobile == "" || !re.MatchString(c.Mobile) {
			return nil, nil
		}
		exists, err := lk.ExistsByMobileExcluding(ctx, c.Mobile, c.ExcludeID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return []domain.Violation{{Field: "mobile", Code: domain.CodeDuplicate, Message: "mobile already registered"}}, nil
	}}
}

// AgeAt 周岁；未来日期返回负数
func AgeAt(dob, now time.Time) int {
	if dob.After(now) {
		return -1
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
