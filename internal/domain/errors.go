package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 错误分类；边界层只按 Kind 映射，不看 message
type Kind string

const (
	KindValidationFailed  Kind = "VALIDATION_FAILED"
	KindVersionConflict   Kind = "VERSION_CONFLICT"
	KindDuplicateField    Kind = "DUPLICATE_FIELD"
	KindNotFound          Kind = "NOT_FOUND"
	KindSequenceExhausted Kind = "SEQUENCE_EXHAUSTED"
	KindUnavailable       Kind = "UNAVAILABLE"
)

// Error 核心层统一错误
type Error struct {
	Kind       Kind
	Msg        string
	Field      string
	Violations []Violation
	Expected   int64 // VersionConflict: 调用方提交的版本
	Actual     int64 // VersionConflict: 当前持久化版本
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	switch e.Kind {
	case KindVersionConflict:
		fmt.Fprintf(&b, " (expected %d, actual %d)", e.Expected, e.Actual)
	case KindValidationFailed:
		fmt.Fprintf(&b, " (%d violations)", len(e.Violations))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同 Kind 即相等，使 errors.Is(err, ErrNotFound) 可用
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidationFailed  = &Error{Kind: KindValidationFailed}
	ErrVersionConflict   = &Error{Kind: KindVersionConflict}
	ErrDuplicateField    = &Error{Kind: KindDuplicateField}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrSequenceExhausted = &Error{Kind: KindSequenceExhausted}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

func ValidationFailed(vs []Violation) error {
	return &Error{Kind: KindValidationFailed, Msg: "student rejected by business rules", Violations: vs}
}

func VersionConflict(id uint64, expected, actual int64) error {
	return &Error{
		Kind:     KindVersionConflict,
		Msg:      fmt.Sprintf("student %d was modified concurrently", id),
		Expected: expected,
		Actual:   actual,
	}
}

func DuplicateField(field string, err error) error {
	return &Error{Kind: KindDuplicateField, Msg: field + " already registered", Field: field, Err: err}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

func SequenceExhausted(year int) error {
	return &Error{Kind: KindSequenceExhausted, Msg: fmt.Sprintf("student id sequence for %d exceeded 99999", year)}
}

func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Msg: op, Err: err}
}

// KindOf 返回错误分类；非核心错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable 仅存储/缓存传输故障可由调用方重试
func Retryable(err error) bool { return KindOf(err) == KindUnavailable }

// ViolationsOf 取出校验违例列表
func ViolationsOf(err error) []Violation {
	var e *Error
	if errors.As(err, &e) {
		return e.Violations
	}
	return nil
}
