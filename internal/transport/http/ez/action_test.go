package ez

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-records/internal/domain"
	resp "student-records/internal/transport/http/response"
)

func TestMapByKind(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ValidationFailed([]domain.Violation{{Field: "mobile"}}), resp.CodeValidation},
		{domain.DuplicateField("mobile", nil), resp.CodeDuplicateField},
		{domain.VersionConflict(1, 0, 1), resp.CodeVersionConflict},
		{domain.NotFound("student"), resp.CodeNotFound},
		{domain.SequenceExhausted(2025), resp.CodeSequenceExhausted},
		{domain.Unavailable("find", errors.New("dial tcp")), resp.CodeUnavailable},
		{BadRequest("bad"), resp.CodeBadRequest},
		{errors.New("boom"), resp.CodeServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, Map(tc.err).Code, tc.err.Error())
	}

	// 内部错误文本不外泄
	ae := Map(domain.Unavailable("find", errors.New("dial tcp 10.0.0.1")))
	assert.NotContains(t, ae.Msg, "10.0.0.1")
}

type echoIn struct {
	Name string `json:"name" binding:"required"`
}

func serve(t *testing.T, body string) resp.Resp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 32)
		c.Next()
	})
	RegisterAction(New(r.Group("")), Action[echoIn, string]{
		Method: http.MethodPost,
		Path:   "/echo",
		Binder: BindJSON,
		Handler: func(_ *gin.Context, in *echoIn) (string, error) {
			if in.Name == "fail" {
				return "", domain.NotFound("echo")
			}
			return in.Name, nil
		},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, w.Code)
	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterAction(t *testing.T) {
	out := serve(t, `{"name":"asha"}`)
	assert.Equal(t, resp.CodeOK, out.Code)
	assert.Equal(t, "asha", out.Data)

	out = serve(t, `{}`)
	assert.Equal(t, resp.CodeBadRequest, out.Code)

	out = serve(t, `{"name":"fail"}`)
	assert.Equal(t, resp.CodeNotFound, out.Code)

	out = serve(t, `{"name":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, resp.CodeBadRequest, out.Code)
	assert.Equal(t, "request body too large", out.Msg)
}
