// Package ez 非 CRUD 接口的一行注册：绑定入参 → 执行 → 统一响应与错误映射。
package ez

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	resp "student-records/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// Binder 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 请求体 JSON
	BindQuery Binder = "query" // URL ?a=b
	BindNone  Binder = "none"  // 不绑定，handler 自己取 c.Param
)

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // GET | POST | PUT | PATCH | DELETE
	Path    string // 例："/students/:id/status"
	Binder  Binder
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前分组下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			msg := bindErr.Error()
			var mbe *http.MaxBytesError
			if errors.As(bindErr, &mbe) {
				msg = "request body too large"
			}
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, msg))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			ae := Map(err)
			if serverSide(ae.Code) {
				_ = c.Error(err) // 交给访问日志记录原始错误
			}
			c.JSON(http.StatusOK, resp.ErrorWith(ae.Code, ae.Msg, ae.Data))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// ParamUint 路径参数转正整数
func ParamUint(c *gin.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, BadRequest("invalid " + name)
	}
	return v, nil
}

// AErr 接口层错误（code 对应 response 业务码）
type AErr struct {
	Code int
	Msg  string
	Data any
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func NotFound(msg string) error   { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

func serverSide(code int) bool {
	switch code {
	case resp.CodeServerError, resp.CodeUnavailable, resp.CodeTimeout, resp.CodeSequenceExhausted:
		return true
	}
	return false
}

// 常见错误之外一律 500，不向外暴露内部错误文本
func internal(err error) *AErr {
	return &AErr{Code: resp.CodeServerError, Msg: resp.CodeMsgMap[resp.CodeServerError], Err: err}
}
