package ez

import (
	"errors"

	"student-records/internal/domain"
	resp "student-records/internal/transport/http/response"
)

type conflictData struct {
	Expected int64 `json:"expected"`
	Actual   int64 `json:"actual"`
}

type violationData struct {
	Field      string             `json:"field,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// Map 按错误分类映射业务码；只看 Kind，不解析 message
func Map(err error) *AErr {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		return internal(err)
	}
	switch de.Kind {
	case domain.KindValidationFailed:
		return &AErr{Code: resp.CodeValidation, Msg: de.Msg, Data: violationData{Violations: de.Violations}, Err: err}
	case domain.KindDuplicateField:
		return &AErr{Code: resp.CodeDuplicateField, Msg: de.Msg, Data: violationData{Field: de.Field, Violations: de.Violations}, Err: err}
	case domain.KindVersionConflict:
		return &AErr{Code: resp.CodeVersionConflict, Msg: de.Msg, Data: conflictData{Expected: de.Expected, Actual: de.Actual}, Err: err}
	case domain.KindNotFound:
		return &AErr{Code: resp.CodeNotFound, Msg: de.Msg, Err: err}
	case domain.KindSequenceExhausted:
		return &AErr{Code: resp.CodeSequenceExhausted, Msg: de.Msg, Err: err}
	case domain.KindUnavailable:
		return &AErr{Code: resp.CodeUnavailable, Msg: resp.CodeMsgMap[resp.CodeUnavailable], Err: err}
	}
	return internal(err)
}
