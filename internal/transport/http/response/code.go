package response

// 业务码：通用部分沿用 HTTP 语义，领域错误各占一个码
const (
	CodeOK                = 0
	CodeBadRequest        = 400
	CodeNotFound          = 404
	CodeVersionConflict   = 409
	CodeValidation        = 422
	CodeTooManyRequests   = 429
	CodeServerError       = 500
	CodeUnavailable       = 503
	CodeTimeout           = 504
	CodeDuplicateField    = 4091
	CodeSequenceExhausted = 5001
)

// CodeMsgMap 集中管理 code - msg
var CodeMsgMap = map[int]string{
	CodeOK:                "OK",
	CodeBadRequest:        "Bad Request",
	CodeNotFound:          "Not Found",
	CodeVersionConflict:   "Version Conflict",
	CodeValidation:        "Validation Failed",
	CodeTooManyRequests:   "Too Many Requests",
	CodeServerError:       "Internal Server Error",
	CodeUnavailable:       "Service Unavailable",
	CodeTimeout:           "Timeout",
	CodeDuplicateField:    "Duplicate Field",
	CodeSequenceExhausted: "Student ID Sequence Exhausted",
}
